package book

import "fmt"

// Side of the book an order wants to trade against.
type Side int8

const (
	Bid Side = iota // buy
	Ask             // sell
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Kind selects the order's execution behavior.
type Kind int8

const (
	Limit Kind = iota
	Market
	StopLimit
)

func (k Kind) String() string {
	switch k {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case StopLimit:
		return "stop_limit"
	default:
		return fmt.Sprintf("kind(%d)", int8(k))
	}
}

// Order is the unit of work. ID and attribution are immutable once the
// order enters the book; Qty is the remaining quantity and is the only
// field matching mutates. Prices are integer ticks, quantities lots.
type Order struct {
	ID     uint64
	Side   Side
	Kind   Kind
	Price  int64 // required for Limit; converted price for triggered stops
	Qty    int64 // remaining, always >= 0
	UserID string

	// Stop-limit fields. Zero means absent.
	StopPrice  int64 // trigger threshold
	LimitPrice int64 // price of the converted limit order

	// Carried through ingestion and snapshots but never read by matching.
	StopLossPrice int64
}

// Fill is one executed trade between a buy order and a sell order.
// The quantity decremented from both sides is identical; position
// deltas derived from a fill are +Qty for BuyUser and -Qty for SellUser.
type Fill struct {
	BuyOrderID  uint64
	SellOrderID uint64
	BuyUser     string
	SellUser    string
	Price       int64
	Qty         int64
}

// AddResult reports the outcome of submitting an order.
type AddResult int8

const (
	Accepted AddResult = iota
	RejectedPositionLimit
)

func (r AddResult) String() string {
	if r == Accepted {
		return "accepted"
	}
	return "rejected_position_limit"
}
