package wsbus

import "spotscan/internal/models"

// Typed dashboard push messages, generalized from a websocket Hub's
// pairUpdate/notification/balanceUpdate/statsUpdate taxonomy to the
// scanner/trading/risk event set. Every message carries its own Type
// discriminator so the frontend can dispatch on it without a schema
// registry.

// NewSignalMessage announces a signal that cleared the bus-publish
// threshold in the scanner.
type NewSignalMessage struct {
	Type   string        `json:"type"`
	Signal models.Signal `json:"signal"`
}

// TradeOpenedMessage announces a trade transitioning PENDING -> OPEN.
type TradeOpenedMessage struct {
	Type  string       `json:"type"`
	Trade models.Trade `json:"trade"`
}

// TradeClosedMessage announces a trade transitioning to CLOSED, by
// take-profit, stop trigger, or emergency stop.
type TradeClosedMessage struct {
	Type  string       `json:"type"`
	Trade models.Trade `json:"trade"`
}

// StopAdjustedMessage announces a trailing-stop promotion.
type StopAdjustedMessage struct {
	Type  string       `json:"type"`
	Trade models.Trade `json:"trade"`
}

// TakeProfitExecutedMessage announces one staged take-profit firing.
type TakeProfitExecutedMessage struct {
	Type  string       `json:"type"`
	Trade models.Trade `json:"trade"`
	Level int          `json:"level"`
}

// ScannerStatusMessage announces a completed scan cycle.
type ScannerStatusMessage struct {
	Type           string `json:"type"`
	Mode           string `json:"mode"`
	SymbolsScanned int    `json:"symbols_scanned"`
}

// EmergencyMessage announces a global emergency-stop-all.
type EmergencyMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
