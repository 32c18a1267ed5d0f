package api

import "github.com/quantora/matchbook/pkg/book"

// BookSnapshot is the aggregated depth view returned by GET /book.
type BookSnapshot struct {
	Asset     string           `json:"asset"`
	Bids      []book.LevelView `json:"bids"` // best bid first
	Asks      []book.LevelView `json:"asks"` // best ask first
	LastPrice int64            `json:"last_price"`
	Timestamp int64            `json:"timestamp"` // unix milliseconds
}

// PositionInfo is a user's net position in the engine's asset.
type PositionInfo struct {
	UserID   string `json:"user_id"`
	Asset    string `json:"asset"`
	Position int64  `json:"position"`
}

// TradeEvent is pushed to websocket subscribers for every fill.
type TradeEvent struct {
	Type        string `json:"type"` // always "trade"
	Asset       string `json:"asset"`
	Price       int64  `json:"price"`
	Qty         int64  `json:"qty"`
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Timestamp   int64  `json:"timestamp"`
}
