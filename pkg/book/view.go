package book

import "container/heap"

// LevelView aggregates one price level for depth reporting.
type LevelView struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
	Count int   `json:"count"`
}

// BidOrders returns copies of every resting bid, best price first,
// arrival order within a level.
func (b *OrderBook) BidOrders() []Order {
	return b.sideOrders(Bid)
}

// AskOrders returns copies of every resting ask, best price first,
// arrival order within a level.
func (b *OrderBook) AskOrders() []Order {
	return b.sideOrders(Ask)
}

func (b *OrderBook) sideOrders(s Side) []Order {
	var out []Order
	for _, price := range b.sortedPrices(s) {
		queue := b.bids[price]
		if s == Ask {
			queue = b.asks[price]
		}
		for _, h := range queue {
			out = append(out, *b.arena.at(h))
		}
	}
	return out
}

// StopOrders returns copies of the pending stop-limit set.
func (b *OrderBook) StopOrders() []Order {
	out := make([]Order, 0, len(b.stops))
	for _, h := range b.stops {
		out = append(out, *b.arena.at(h))
	}
	return out
}

// sortedPrices lists a side's prices best-first without disturbing the
// heap: bids descending, asks ascending.
func (b *OrderBook) sortedPrices(s Side) []int64 {
	if s == Bid {
		tmp := make(maxPriceHeap, len(b.bidHeap))
		copy(tmp, b.bidHeap)
		out := make([]int64, 0, len(tmp))
		for tmp.Len() > 0 {
			out = append(out, heap.Pop(&tmp).(int64))
		}
		return out
	}
	tmp := make(minPriceHeap, len(b.askHeap))
	copy(tmp, b.askHeap)
	out := make([]int64, 0, len(tmp))
	for tmp.Len() > 0 {
		out = append(out, heap.Pop(&tmp).(int64))
	}
	return out
}

// BidLevels returns aggregated depth, best bid first.
func (b *OrderBook) BidLevels() []LevelView {
	return b.sideLevels(Bid)
}

// AskLevels returns aggregated depth, best ask first.
func (b *OrderBook) AskLevels() []LevelView {
	return b.sideLevels(Ask)
}

func (b *OrderBook) sideLevels(s Side) []LevelView {
	var out []LevelView
	for _, price := range b.sortedPrices(s) {
		queue := b.bids[price]
		if s == Ask {
			queue = b.asks[price]
		}
		lv := LevelView{Price: price, Count: len(queue)}
		for _, h := range queue {
			lv.Qty += b.arena.at(h).Qty
		}
		out = append(out, lv)
	}
	return out
}

// BestBid returns the highest resting buy price.
func (b *OrderBook) BestBid() (int64, bool) { return b.bestBid() }

// BestAsk returns the lowest resting sell price.
func (b *OrderBook) BestAsk() (int64, bool) { return b.bestAsk() }

// LastPrice is the price of the most recent fill, zero before any trade.
func (b *OrderBook) LastPrice() int64 { return b.lastPrice }

// OrderCount is the number of resting orders on both sides, excluding
// pending stops.
func (b *OrderBook) OrderCount() int {
	n := 0
	for _, q := range b.bids {
		n += len(q)
	}
	for _, q := range b.asks {
		n += len(q)
	}
	return n
}

// StopCount is the number of pending stop-limit orders.
func (b *OrderBook) StopCount() int { return len(b.stops) }

// Restore replaces the book's contents with previously captured
// orders. Price priority is re-derived from each order's price; queue
// position within a level follows slice order. No admission check and
// no matching pass runs: the input is trusted to be a previously
// consistent book.
func (b *OrderBook) Restore(bids, asks, stops []Order) {
	b.arena.reset()
	b.bidHeap = b.bidHeap[:0]
	b.askHeap = b.askHeap[:0]
	b.bids = make(map[int64][]handle)
	b.asks = make(map[int64][]handle)
	b.stops = b.stops[:0]
	b.trigger = b.trigger[:0]

	for _, o := range bids {
		o.Side = Bid
		b.addBid(o.Price, b.arena.alloc(o))
	}
	for _, o := range asks {
		o.Side = Ask
		b.addAsk(o.Price, b.arena.alloc(o))
	}
	for _, o := range stops {
		o.Kind = StopLimit
		b.stops = append(b.stops, b.arena.alloc(o))
	}
}
