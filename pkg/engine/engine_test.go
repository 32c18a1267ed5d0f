package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantora/matchbook/pkg/book"
	"github.com/quantora/matchbook/pkg/ledger"
	"github.com/quantora/matchbook/pkg/storage"
)

const asset = "asset_1"

func newTestEngine(t *testing.T, store storage.Store, limits map[string]int64) *Engine {
	t.Helper()
	if store == nil {
		store = storage.NewMemStore()
	}
	return New(Config{
		Asset:  asset,
		Ledger: ledger.New(store, limits, nil),
	})
}

func buyLimit(id uint64, price, qty int64, user string) book.Order {
	return book.Order{ID: id, Side: book.Bid, Kind: book.Limit, Price: price, Qty: qty, UserID: user}
}

func sellLimit(id uint64, price, qty int64, user string) book.Order {
	return book.Order{ID: id, Side: book.Ask, Kind: book.Limit, Price: price, Qty: qty, UserID: user}
}

func TestSubmitRejectsNonPositiveQuantity(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	_, _, err := e.Submit(buyLimit(1, 100, 0, "u1"))
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestMatchedFillsUpdateBothPositions(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	res, fills, err := e.Submit(buyLimit(1, 100, 5, "u1"))
	require.NoError(t, err)
	require.Equal(t, book.Accepted, res)
	assert.Empty(t, fills)

	res, fills, err = e.Submit(sellLimit(2, 100, 5, "u2"))
	require.NoError(t, err)
	require.Equal(t, book.Accepted, res)
	require.Len(t, fills, 1)

	assert.EqualValues(t, 5, e.Position("u1"))
	assert.EqualValues(t, -5, e.Position("u2"))

	bids, asks := e.Depth()
	assert.Empty(t, bids)
	assert.Empty(t, asks)
}

func TestPositionLimitRejection(t *testing.T) {
	store := storage.NewMemStore()
	// u1 already holds 98 of a limit-100 asset.
	require.NoError(t, store.Set(ledger.PositionKey("u1", asset), []byte("98")))

	e := newTestEngine(t, store, map[string]int64{asset: 100})

	res, fills, err := e.Submit(buyLimit(1, 100, 5, "u1"))
	require.NoError(t, err)
	assert.Equal(t, book.RejectedPositionLimit, res)
	assert.Empty(t, fills)

	// No state change anywhere: position intact, book untouched.
	assert.EqualValues(t, 98, e.Position("u1"))
	bids, asks := e.Depth()
	assert.Empty(t, bids)
	assert.Empty(t, asks)

	st := e.Stats()
	assert.EqualValues(t, 1, st.Rejected)
	assert.EqualValues(t, 0, st.Accepted)
}

func TestPositionLimitBoundaryAccepted(t *testing.T) {
	store := storage.NewMemStore()
	require.NoError(t, store.Set(ledger.PositionKey("u1", asset), []byte("98")))

	e := newTestEngine(t, store, map[string]int64{asset: 100})

	// Projection lands exactly on the limit: accepted.
	res, _, err := e.Submit(buyLimit(1, 100, 2, "u1"))
	require.NoError(t, err)
	assert.Equal(t, book.Accepted, res)
}

func TestSellsUnboundedBelow(t *testing.T) {
	e := newTestEngine(t, nil, map[string]int64{asset: 100})

	// The limit is an upper bound on net position; selling has no floor.
	res, _, err := e.Submit(sellLimit(1, 100, 500, "u1"))
	require.NoError(t, err)
	assert.Equal(t, book.Accepted, res)
}

func TestFillConservation(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.Submit(buyLimit(1, 100, 6, "a"))
	e.Submit(buyLimit(2, 100, 4, "b"))
	_, fills, err := e.Submit(sellLimit(3, 100, 7, "c"))
	require.NoError(t, err)
	require.Len(t, fills, 2)

	var bought, sold int64
	for _, f := range fills {
		bought += f.Qty
		sold += f.Qty
	}
	assert.Equal(t, e.Position("a")+e.Position("b"), bought)
	assert.Equal(t, e.Position("c"), -sold)
}

func TestStatsTracksBookShape(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.Submit(buyLimit(1, 99, 5, "u1"))
	e.Submit(sellLimit(2, 101, 3, "u2"))
	e.Submit(book.Order{
		ID: 3, Side: book.Ask, Kind: book.StopLimit, Qty: 2, UserID: "u3",
		StopPrice: 90, LimitPrice: 89,
	})

	st := e.Stats()
	assert.EqualValues(t, 3, st.Accepted)
	assert.Equal(t, 2, st.RestingOrders)
	assert.Equal(t, 1, st.PendingStops)
	assert.EqualValues(t, 99, st.BestBid)
	assert.EqualValues(t, 101, st.BestAsk)
}

func TestWALReplayRebuildsBook(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "orders.wal")
	wal, err := storage.NewFileWAL(walPath)
	require.NoError(t, err)

	e1 := New(Config{
		Asset:  asset,
		Ledger: ledger.New(storage.NewMemStore(), nil, nil),
		WAL:    wal,
	})
	e1.Submit(buyLimit(1, 100, 5, "u1"))
	e1.Submit(buyLimit(2, 99, 4, "u2"))
	e1.Submit(sellLimit(3, 100, 2, "u3"))
	require.NoError(t, wal.Close())

	e2 := newTestEngine(t, nil, nil)
	n, err := storage.ReplayWAL(walPath, e2.Replay)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	b1, a1 := e1.Depth()
	b2, a2 := e2.Depth()
	assert.Equal(t, b1, b2)
	assert.Equal(t, a1, a2)
	assert.EqualValues(t, 2, e2.Position("u1"))
	assert.Equal(t, e1.Stats().LastPrice, e2.Stats().LastPrice)
}
