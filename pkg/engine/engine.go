// Package engine composes the order book with the position ledger.
// Engine.Submit is the only write entry point into matching state;
// exactly one goroutine (the ingest loop) may call it. Read accessors
// take a shared lock so the API can observe a consistent book.
package engine

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/quantora/matchbook/pkg/book"
	"github.com/quantora/matchbook/pkg/ledger"
	"github.com/quantora/matchbook/pkg/storage"
)

var ErrInvalidQuantity = errors.New("engine: order quantity must be positive")

// Config wires the engine's collaborators.
type Config struct {
	Asset  string
	Ledger *ledger.Ledger
	WAL    storage.WAL // nil disables journaling
	OnFill func(book.Fill)
	Log    *zap.SugaredLogger
}

// Stats is a point-in-time counters view for monitoring.
type Stats struct {
	Asset         string `json:"asset"`
	Accepted      uint64 `json:"accepted"`
	Rejected      uint64 `json:"rejected"`
	Fills         uint64 `json:"fills"`
	RestingOrders int    `json:"resting_orders"`
	PendingStops  int    `json:"pending_stops"`
	BestBid       int64  `json:"best_bid"`
	BestAsk       int64  `json:"best_ask"`
	LastPrice     int64  `json:"last_price"`
}

type Engine struct {
	mu sync.RWMutex

	asset  string
	book   *book.OrderBook
	ledger *ledger.Ledger
	wal    storage.WAL
	onFill func(book.Fill)
	log    *zap.SugaredLogger

	// fills executed by the Submit call in progress
	pending []book.Fill

	accepted  uint64
	rejected  uint64
	fills     uint64
	replaying bool
}

func New(cfg Config) *Engine {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	if cfg.WAL == nil {
		cfg.WAL = storage.NewNopWAL()
	}
	e := &Engine{
		asset:  cfg.Asset,
		ledger: cfg.Ledger,
		wal:    cfg.WAL,
		onFill: cfg.OnFill,
		log:    cfg.Log,
	}
	e.book = book.New(book.Config{
		Admit:  e.admit,
		OnFill: e.handleFill,
		Log:    cfg.Log,
	})
	return e
}

// admit applies the position-limit check before any book mutation,
// for external orders and stop conversions alike.
func (e *Engine) admit(o *book.Order) bool {
	limit, bounded := e.ledger.LimitFor(e.asset)
	if !bounded {
		return true
	}
	delta := o.Qty
	if o.Side == book.Ask {
		delta = -delta
	}
	if e.ledger.Projected(o.UserID, e.asset, delta) > limit {
		e.log.Warnw("position limit exceeded",
			"user", o.UserID, "asset", e.asset,
			"order_id", o.ID, "limit", limit)
		return false
	}
	return true
}

// handleFill applies the paired ledger update for one fill: the buyer
// gains what the seller sheds, in the same unit of work.
func (e *Engine) handleFill(f book.Fill) {
	e.ledger.Apply(f.BuyUser, e.asset, f.Qty)
	e.ledger.Apply(f.SellUser, e.asset, -f.Qty)
	e.fills++
	e.pending = append(e.pending, f)
	if e.onFill != nil {
		e.onFill(f)
	}
}

// Submit runs one order to completion: admission, insertion, the full
// matching pass including stop conversions, and ledger updates for
// every fill produced. The returned fills are in execution order.
func (e *Engine) Submit(o book.Order) (book.AddResult, []book.Fill, error) {
	if o.Qty <= 0 {
		return 0, nil, ErrInvalidQuantity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = nil
	res := e.book.Submit(o)
	if res != book.Accepted {
		e.rejected++
		return res, nil, nil
	}
	e.accepted++
	e.journal(o)
	return res, e.pending, nil
}

func (e *Engine) journal(o book.Order) {
	if e.replaying {
		return
	}
	rec, err := json.Marshal(o)
	if err != nil {
		e.log.Errorw("wal encode failed", "order_id", o.ID, "err", err)
		return
	}
	if err := e.wal.Append(rec); err != nil {
		e.log.Warnw("wal append failed", "order_id", o.ID, "err", err)
	}
}

// Replay resubmits a journaled order record during recovery. Replayed
// orders are not re-journaled.
func (e *Engine) Replay(record []byte) error {
	var o book.Order
	if err := json.Unmarshal(record, &o); err != nil {
		return err
	}
	e.replaying = true
	defer func() { e.replaying = false }()
	_, _, err := e.Submit(o)
	return err
}

// Export returns copies of the book's contents for snapshotting.
func (e *Engine) Export() (bids, asks, stops []book.Order) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BidOrders(), e.book.AskOrders(), e.book.StopOrders()
}

// Restore replaces the book's contents from a loaded snapshot.
func (e *Engine) Restore(bids, asks, stops []book.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.book.Restore(bids, asks, stops)
	e.log.Infow("book restored",
		"bids", len(bids), "asks", len(asks), "stops", len(stops))
}

// Depth returns aggregated levels for both sides, best price first.
func (e *Engine) Depth() (bids, asks []book.LevelView) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BidLevels(), e.book.AskLevels()
}

// Position returns a user's current net position for the engine's
// asset. It takes the write lock: a first read for a user faults the
// value in from the store and caches it.
func (e *Engine) Position(user string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Get(user, e.asset)
}

// Asset returns the single instrument this engine matches.
func (e *Engine) Asset() string { return e.asset }

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bb, _ := e.book.BestBid()
	ba, _ := e.book.BestAsk()
	return Stats{
		Asset:         e.asset,
		Accepted:      e.accepted,
		Rejected:      e.rejected,
		Fills:         e.fills,
		RestingOrders: e.book.OrderCount(),
		PendingStops:  e.book.StopCount(),
		BestBid:       bb,
		BestAsk:       ba,
		LastPrice:     e.book.LastPrice(),
	}
}
