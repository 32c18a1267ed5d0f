// Package snapshot serializes book contents to the durable key-value
// store for restart recovery. Each side is one JSON array, ordered
// best price first with arrival order preserved within a level, so
// restoring in array order rebuilds both price and time priority.
package snapshot

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantora/matchbook/pkg/book"
	"github.com/quantora/matchbook/pkg/storage"
)

const (
	KeyBids  = "order_book:bids"
	KeyAsks  = "order_book:asks"
	KeyStops = "order_book:stops"
)

// record is the stored form of one order. For bids and asks the side
// is implicit in which key the record lives under; for pending stops
// the side field is authoritative, since stop direction decides the
// trigger test.
type record struct {
	OrderID       uint64 `json:"order_id"`
	Side          string `json:"side"`
	Price         int64  `json:"price"`
	Quantity      int64  `json:"quantity"`
	OrderType     string `json:"order_type"`
	UserID        string `json:"user_id"`
	StopLossPrice int64  `json:"stop_loss_price,omitempty"`
	StopPrice     int64  `json:"stop_price,omitempty"`
	LimitPrice    int64  `json:"limit_price,omitempty"`
}

type Store struct {
	kv  storage.Store
	log *zap.SugaredLogger
}

func NewStore(kv storage.Store, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{kv: kv, log: log}
}

// Write captures the full book contents. Pending stops are included so
// a restart does not silently discard armed stop orders.
func (s *Store) Write(bids, asks, stops []book.Order) error {
	if err := s.writeSide(KeyBids, bids); err != nil {
		return err
	}
	if err := s.writeSide(KeyAsks, asks); err != nil {
		return err
	}
	return s.writeSide(KeyStops, stops)
}

func (s *Store) writeSide(key string, orders []book.Order) error {
	recs := make([]record, len(orders))
	for i, o := range orders {
		recs[i] = record{
			OrderID:       o.ID,
			Side:          o.Side.String(),
			Price:         o.Price,
			Quantity:      o.Qty,
			OrderType:     o.Kind.String(),
			UserID:        o.UserID,
			StopLossPrice: o.StopLossPrice,
			StopPrice:     o.StopPrice,
			LimitPrice:    o.LimitPrice,
		}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Load reads back both sides and the pending stop set. Absent keys
// yield empty slices: a fresh store restores to an empty book.
func (s *Store) Load() (bids, asks, stops []book.Order, err error) {
	if bids, err = s.loadSide(KeyBids); err != nil {
		return nil, nil, nil, err
	}
	if asks, err = s.loadSide(KeyAsks); err != nil {
		return nil, nil, nil, err
	}
	if stops, err = s.loadSide(KeyStops); err != nil {
		return nil, nil, nil, err
	}
	return bids, asks, stops, nil
}

func (s *Store) loadSide(key string) ([]book.Order, error) {
	data, err := s.kv.Get(key)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	orders := make([]book.Order, len(recs))
	for i, r := range recs {
		orders[i] = book.Order{
			ID:            r.OrderID,
			Side:          sideOf(r.Side),
			Price:         r.Price,
			Qty:           r.Quantity,
			Kind:          kindOf(r.OrderType),
			UserID:        r.UserID,
			StopLossPrice: r.StopLossPrice,
			StopPrice:     r.StopPrice,
			LimitPrice:    r.LimitPrice,
		}
	}
	return orders, nil
}

func sideOf(s string) book.Side {
	if s == "ask" {
		return book.Ask
	}
	return book.Bid
}

func kindOf(s string) book.Kind {
	switch s {
	case "market":
		return book.Market
	case "stop_limit":
		return book.StopLimit
	default:
		return book.Limit
	}
}
