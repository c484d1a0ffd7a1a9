package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"spotscan/internal/models"
	"spotscan/internal/repository"
)

// TradeStore is the read contract this handler needs, satisfied by
// *repository.Repository.
type TradeStore interface {
	ListOpenTrades(ctx context.Context) ([]models.Trade, error)
	GetTradeByID(ctx context.Context, id string) (models.Trade, error)
	ListOrdersByTrade(ctx context.Context, tradeID string) ([]models.Order, error)
}

// TradesHandler serves open-position and trade-history queries.
type TradesHandler struct {
	store TradeStore
}

func NewTradesHandler(store TradeStore) *TradesHandler {
	return &TradesHandler{store: store}
}

// GetOpenTrades handles GET /api/v1/trades.
func (h *TradesHandler) GetOpenTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.store.ListOpenTrades(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "trades_fetch_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// tradeWithOrders is the detail-view response shape: a trade plus the
// fills that built and closed it.
type tradeWithOrders struct {
	Trade  models.Trade   `json:"trade"`
	Orders []models.Order `json:"orders"`
}

// GetTrade handles GET /api/v1/trades/{id}.
func (h *TradesHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	trade, err := h.store.GetTradeByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			writeError(w, http.StatusNotFound, "trade_not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "trade_fetch_failed", err.Error())
		return
	}

	orders, err := h.store.ListOrdersByTrade(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "orders_fetch_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, tradeWithOrders{Trade: trade, Orders: orders})
}
