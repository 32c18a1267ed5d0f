package book

import (
	"container/heap"

	"go.uber.org/zap"
)

// Synthetic IDs for limit orders created by stop triggers live far
// above any source-assigned ID.
const stopConvertBase uint64 = 1 << 62

// AdmitFunc is consulted once per order (external or stop-converted)
// before any book mutation. Returning false rejects the order with no
// state change.
type AdmitFunc func(o *Order) bool

// FillFunc observes every executed fill, in execution order.
type FillFunc func(f Fill)

// Config wires the book's collaborators. Zero-value hooks are allowed:
// a nil Admit admits everything, a nil OnFill discards fills.
type Config struct {
	Admit  AdmitFunc
	OnFill FillFunc
	Log    *zap.SugaredLogger
}

// OrderBook holds both sides of a single instrument plus the pending
// stop-limit set, and owns the matching algorithm. It is strictly
// single-writer: exactly one goroutine may call Submit.
type OrderBook struct {
	cfg Config

	arena arena

	bidHeap maxPriceHeap
	askHeap minPriceHeap
	bids    map[int64][]handle // price -> FIFO queue
	asks    map[int64][]handle

	stops []handle // pending stop-limit orders, untriggered

	// Stop conversions queued during a matching pass; drained by
	// Submit so triggering never recurses.
	trigger []Order

	lastPrice int64
	stopSeq   uint64
}

func New(cfg Config) *OrderBook {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	return &OrderBook{
		cfg:  cfg,
		bids: make(map[int64][]handle),
		asks: make(map[int64][]handle),
	}
}

// Submit runs one order through admission, insertion and the matching
// pass, then drains any stop conversions the pass triggered. It returns
// the admission outcome of the submitted order; conversions that fail
// admission are logged and dropped without affecting this result.
func (b *OrderBook) Submit(o Order) AddResult {
	res := b.process(o)
	for len(b.trigger) > 0 {
		next := b.trigger[0]
		b.trigger = b.trigger[1:]
		if b.process(next) != Accepted {
			b.cfg.Log.Warnw("converted stop order rejected",
				"order_id", next.ID, "user", next.UserID)
		}
	}
	return res
}

func (b *OrderBook) process(o Order) AddResult {
	if b.cfg.Admit != nil && !b.cfg.Admit(&o) {
		return RejectedPositionLimit
	}

	switch o.Kind {
	case Limit:
		b.rest(o)
	case Market:
		b.matchMarket(&o)
	case StopLimit:
		b.stops = append(b.stops, b.arena.alloc(o))
		b.cfg.Log.Infow("stop-limit order pending",
			"order_id", o.ID, "stop_price", o.StopPrice, "limit_price", o.LimitPrice)
	}

	b.match()
	return Accepted
}

// rest appends a limit order at the tail of its price level's queue.
func (b *OrderBook) rest(o Order) {
	h := b.arena.alloc(o)
	if o.Side == Bid {
		b.addBid(o.Price, h)
	} else {
		b.addAsk(o.Price, h)
	}
}

func (b *OrderBook) addBid(p int64, h handle) {
	if len(b.bids[p]) == 0 {
		heap.Push(&b.bidHeap, p)
	}
	b.bids[p] = append(b.bids[p], h)
}

func (b *OrderBook) addAsk(p int64, h handle) {
	if len(b.asks[p]) == 0 {
		heap.Push(&b.askHeap, p)
	}
	b.asks[p] = append(b.asks[p], h)
}

func (b *OrderBook) bestBid() (int64, bool) {
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return b.bidHeap.Peek(), true
}

func (b *OrderBook) bestAsk() (int64, bool) {
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return b.askHeap.Peek(), true
}

// popLevel removes and returns an entire price level's queue.
func (b *OrderBook) popLevel(side Side, price int64) []handle {
	if side == Bid {
		q := b.bids[price]
		delete(b.bids, price)
		b.removeFromBidHeap(price)
		return q
	}
	q := b.asks[price]
	delete(b.asks, price)
	b.removeFromAskHeap(price)
	return q
}

// removeFromBidHeap drops a price level from the bid heap (O(N) scan,
// but levels empty rarely relative to matches).
func (b *OrderBook) removeFromBidHeap(price int64) {
	for i := 0; i < b.bidHeap.Len(); i++ {
		if b.bidHeap[i] == price {
			heap.Remove(&b.bidHeap, i)
			return
		}
	}
}

func (b *OrderBook) removeFromAskHeap(price int64) {
	for i := 0; i < b.askHeap.Len(); i++ {
		if b.askHeap[i] == price {
			heap.Remove(&b.askHeap, i)
			return
		}
	}
}

// ---- market orders ----

// matchMarket consumes liquidity from the opposite side at resting
// prices. If the opposite side is empty it falls back to the same side
// (legacy degenerate behavior, reachable only from one-sided books).
// Market orders never rest: any unfilled remainder is dropped.
func (b *OrderBook) matchMarket(o *Order) {
	for o.Qty > 0 {
		side := oppositeOf(o.Side)
		if b.sideEmpty(side) {
			side = o.Side
			if b.sideEmpty(side) {
				b.cfg.Log.Warnw("market order unfilled, no liquidity",
					"order_id", o.ID, "remaining", o.Qty)
				return
			}
			b.cfg.Log.Warnw("market order filling against same side",
				"order_id", o.ID, "side", o.Side.String())
		}

		price, h := b.headOf(side)
		resting := b.arena.at(h)

		fill := min(o.Qty, resting.Qty)
		o.Qty -= fill
		resting.Qty -= fill
		b.lastPrice = price

		b.emit(o, resting, price, fill)

		if resting.Qty == 0 {
			b.dropHead(side, price)
			b.arena.release(h)
		}
	}
}

func oppositeOf(s Side) Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (b *OrderBook) sideEmpty(s Side) bool {
	if s == Bid {
		return b.bidHeap.Len() == 0
	}
	return b.askHeap.Len() == 0
}

// headOf returns the best price on a side and the handle at the front
// of that level's queue. Callers must check sideEmpty first.
func (b *OrderBook) headOf(s Side) (int64, handle) {
	if s == Bid {
		p := b.bidHeap.Peek()
		return p, b.bids[p][0]
	}
	p := b.askHeap.Peek()
	return p, b.asks[p][0]
}

func (b *OrderBook) dropHead(s Side, price int64) {
	if s == Bid {
		b.bids[price] = b.bids[price][1:]
		if len(b.bids[price]) == 0 {
			delete(b.bids, price)
			b.removeFromBidHeap(price)
		}
		return
	}
	b.asks[price] = b.asks[price][1:]
	if len(b.asks[price]) == 0 {
		delete(b.asks, price)
		b.removeFromAskHeap(price)
	}
}

// emit builds a Fill with buy/sell attribution from the taker's side.
// In the same-side fallback the resting order still takes the opposite
// role so ledger deltas stay paired.
func (b *OrderBook) emit(taker, resting *Order, price, qty int64) {
	f := Fill{Price: price, Qty: qty}
	if taker.Side == Bid {
		f.BuyOrderID, f.BuyUser = taker.ID, taker.UserID
		f.SellOrderID, f.SellUser = resting.ID, resting.UserID
	} else {
		f.BuyOrderID, f.BuyUser = resting.ID, resting.UserID
		f.SellOrderID, f.SellUser = taker.ID, taker.UserID
	}
	b.cfg.Log.Infow("trade",
		"price", f.Price, "qty", f.Qty,
		"buy_order", f.BuyOrderID, "sell_order", f.SellOrderID)
	if b.cfg.OnFill != nil {
		b.cfg.OnFill(f)
	}
}

// ---- matching pass ----

// match runs after every insertion and market execution: trigger
// scan first, then the crossing loop. Post-condition: either one side
// is empty or best bid < best ask.
func (b *OrderBook) match() {
	if ref, ok := b.referencePrice(); ok {
		b.triggerStops(ref)
	}

	for {
		bb, okB := b.bestBid()
		ba, okA := b.bestAsk()
		if !okB || !okA || bb < ba {
			return
		}
		b.crossLevel(bb, ba)
	}
}

// referencePrice is the best ask when asks exist, else the best bid.
func (b *OrderBook) referencePrice() (int64, bool) {
	if p, ok := b.bestAsk(); ok {
		return p, true
	}
	return b.bestBid()
}

// triggerStops converts every pending stop order whose threshold the
// reference price has crossed into a fresh limit order and queues it
// for submission. Direction matters: a stop-buy arms on the price
// rising to its stop, a stop-sell on the price falling to it.
func (b *OrderBook) triggerStops(ref int64) {
	remaining := b.stops[:0]
	for _, h := range b.stops {
		o := b.arena.at(h)

		var fired bool
		if o.Side == Bid {
			fired = ref >= o.StopPrice
		} else {
			fired = ref <= o.StopPrice
		}
		if !fired {
			remaining = append(remaining, h)
			continue
		}

		b.stopSeq++
		conv := Order{
			ID:     stopConvertBase + b.stopSeq,
			Side:   o.Side,
			Kind:   Limit,
			Price:  o.LimitPrice,
			Qty:    o.Qty,
			UserID: o.UserID,
		}
		b.cfg.Log.Infow("stop-limit triggered",
			"order_id", o.ID, "converted_id", conv.ID,
			"stop_price", o.StopPrice, "reference_price", ref)
		b.trigger = append(b.trigger, conv)
		b.arena.release(h)
	}
	b.stops = remaining
}

// crossLevel pops the full queues at the current best bid and best ask
// and fills them pairwise in arrival order. All fills in the pass
// execute at the best bid price captured when the level was popped.
// Orders with remaining quantity are pushed back in queue order, so
// they keep level priority for the next pass.
func (b *OrderBook) crossLevel(bestBid, bestAsk int64) {
	bidQ := b.popLevel(Bid, bestBid)
	askQ := b.popLevel(Ask, bestAsk)

	var totalBid, totalAsk int64
	for _, h := range bidQ {
		totalBid += b.arena.at(h).Qty
	}
	for _, h := range askQ {
		totalAsk += b.arena.at(h).Qty
	}
	tradeQty := min(totalBid, totalAsk)

	bi, ai := 0, 0
	for tradeQty > 0 && bi < len(bidQ) && ai < len(askQ) {
		bo := b.arena.at(bidQ[bi])
		ao := b.arena.at(askQ[ai])

		fill := min(tradeQty, min(bo.Qty, ao.Qty))
		bo.Qty -= fill
		ao.Qty -= fill
		tradeQty -= fill
		b.lastPrice = bestBid

		f := Fill{
			BuyOrderID:  bo.ID,
			SellOrderID: ao.ID,
			BuyUser:     bo.UserID,
			SellUser:    ao.UserID,
			Price:       bestBid,
			Qty:         fill,
		}
		b.cfg.Log.Infow("trade",
			"price", f.Price, "qty", f.Qty,
			"buy_order", f.BuyOrderID, "sell_order", f.SellOrderID)
		if b.cfg.OnFill != nil {
			b.cfg.OnFill(f)
		}

		if bo.Qty == 0 {
			bi++
		}
		if ao.Qty == 0 {
			ai++
		}
	}

	// Survivors go back in queue order; exhausted slots are freed.
	for _, h := range bidQ {
		if b.arena.at(h).Qty > 0 {
			b.addBid(bestBid, h)
		} else {
			b.arena.release(h)
		}
	}
	for _, h := range askQ {
		if b.arena.at(h).Qty > 0 {
			b.addAsk(bestAsk, h)
		} else {
			b.arena.release(h)
		}
	}
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
