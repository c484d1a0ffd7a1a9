// Package repository is the persistence layer: it drives every asset,
// candle, indicator, signal, trade, and order record through Postgres
// via database/sql and github.com/lib/pq, and implements the small
// reader/writer interfaces internal/scanner, internal/trading, and
// internal/risk each define against a store of their own.
package repository

import (
	"database/sql"
	"errors"
	"strings"
)

// Sentinel errors returned when a lookup finds nothing, mirroring the
// not-found conventions of the other repositories in this codebase.
var (
	ErrAssetNotFound = errors.New("repository: asset not found")
	ErrTradeNotFound = errors.New("repository: trade not found")
	ErrOrderNotFound = errors.New("repository: order not found")
)

// Repository is the single Postgres-backed persistence gateway. Its
// methods are grouped across assets.go, candles.go, indicators.go,
// signals.go, trades.go, and orders.go by the entity they touch, but
// all share one *sql.DB and one connection pool.
type Repository struct {
	db *sql.DB
}

// New wraps an already-opened, already-pinged *sql.DB.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
