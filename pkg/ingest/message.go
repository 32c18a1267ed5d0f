package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quantora/matchbook/pkg/book"
)

// ErrMalformed marks messages that must be dropped without touching
// engine state.
var ErrMalformed = errors.New("ingest: malformed order message")

// wireOrder is the bus payload for one order. Required numeric fields
// are pointers so an absent key is distinguishable from zero.
type wireOrder struct {
	OrderID       *uint64 `json:"order_id"`
	Side          string  `json:"side"`
	Price         *int64  `json:"price"`
	Quantity      *int64  `json:"quantity"`
	OrderType     string  `json:"order_type"`
	UserID        string  `json:"user_id"`
	StopLossPrice *int64  `json:"stop_loss_price"`
	StopPrice     *int64  `json:"stop_price"`
	LimitPrice    *int64  `json:"limit_price"`
}

// Decode parses and validates one order message. Every validation
// failure wraps ErrMalformed.
func Decode(data []byte) (book.Order, error) {
	var w wireOrder
	if err := json.Unmarshal(data, &w); err != nil {
		return book.Order{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if w.OrderID == nil {
		return book.Order{}, fmt.Errorf("%w: missing order_id", ErrMalformed)
	}
	if w.UserID == "" {
		return book.Order{}, fmt.Errorf("%w: missing user_id", ErrMalformed)
	}
	if w.Quantity == nil {
		return book.Order{}, fmt.Errorf("%w: missing quantity", ErrMalformed)
	}
	if *w.Quantity <= 0 {
		return book.Order{}, fmt.Errorf("%w: quantity must be > 0, got %d", ErrMalformed, *w.Quantity)
	}

	var side book.Side
	switch w.Side {
	case "buy":
		side = book.Bid
	case "sell":
		side = book.Ask
	default:
		return book.Order{}, fmt.Errorf("%w: unknown side %q", ErrMalformed, w.Side)
	}

	o := book.Order{
		ID:     *w.OrderID,
		Side:   side,
		Qty:    *w.Quantity,
		UserID: w.UserID,
	}
	if w.StopLossPrice != nil {
		o.StopLossPrice = *w.StopLossPrice
	}

	switch w.OrderType {
	case "limit":
		o.Kind = book.Limit
		if w.Price == nil {
			return book.Order{}, fmt.Errorf("%w: limit order missing price", ErrMalformed)
		}
		o.Price = *w.Price
	case "market":
		o.Kind = book.Market
		// price ignored for market orders
	case "stop_limit":
		o.Kind = book.StopLimit
		if w.StopPrice == nil {
			return book.Order{}, fmt.Errorf("%w: stop_limit order missing stop_price", ErrMalformed)
		}
		if w.LimitPrice == nil {
			return book.Order{}, fmt.Errorf("%w: stop_limit order missing limit_price", ErrMalformed)
		}
		o.StopPrice = *w.StopPrice
		o.LimitPrice = *w.LimitPrice
		if w.Price != nil {
			o.Price = *w.Price
		}
	default:
		return book.Order{}, fmt.Errorf("%w: unknown order_type %q", ErrMalformed, w.OrderType)
	}

	return o, nil
}
