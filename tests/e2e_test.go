// file: tests/e2e_test.go
package tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/quantora/matchbook/pkg/engine"
	"github.com/quantora/matchbook/pkg/ingest"
	"github.com/quantora/matchbook/pkg/ledger"
	"github.com/quantora/matchbook/pkg/snapshot"
	"github.com/quantora/matchbook/pkg/storage"
)

func newStack(kv storage.Store, limits map[string]int64) (*engine.Engine, *snapshot.Store) {
	led := ledger.New(kv, limits, nil)
	eng := engine.New(engine.Config{Asset: "asset_1", Ledger: led})
	return eng, snapshot.NewStore(kv, nil)
}

// runStream feeds raw messages through the full ingest pipeline and
// waits for the loop to drain.
func runStream(t *testing.T, eng *engine.Engine, snap *snapshot.Store, msgs []string) {
	t.Helper()
	src := ingest.NewChanSource(len(msgs))
	for _, m := range msgs {
		src.Send([]byte(m))
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	loop := ingest.NewLoop(src, eng, snap, nil)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("ingest loop: %v", err)
	}
}

// TestFullPipeline drives limit, stop-limit and market orders from raw
// bus messages through matching, the ledger and the snapshot store,
// then restores a second engine from durable state alone.
func TestFullPipeline(t *testing.T) {
	kv := storage.NewMemStore()
	eng, snap := newStack(kv, nil)

	runStream(t, eng, snap, []string{
		// resting liquidity on both sides, spread 100/105
		`{"order_id":1,"side":"buy","price":100,"quantity":5,"order_type":"limit","user_id":"alice"}`,
		`{"order_id":2,"side":"sell","price":105,"quantity":5,"order_type":"limit","user_id":"bob"}`,
		// stop-buy at 104: reference price (best ask 105) is already
		// past the threshold, so it converts and lifts bob's ask
		`{"order_id":3,"side":"buy","quantity":2,"order_type":"stop_limit","stop_price":104,"limit_price":106,"user_id":"carol"}`,
		// market sell consumes part of alice's bid
		`{"order_id":4,"side":"sell","quantity":3,"order_type":"market","user_id":"dave"}`,
	})

	positions := map[string]int64{
		"alice": 3, "bob": -2, "carol": 2, "dave": -3,
	}
	var sum int64
	for user, want := range positions {
		got := eng.Position(user)
		if got != want {
			t.Errorf("position[%s] = %d, want %d", user, got, want)
		}
		sum += got
	}
	if sum != 0 {
		t.Errorf("positions do not conserve: sum = %d", sum)
	}

	bids, asks := eng.Depth()
	if len(bids) != 1 || bids[0].Price != 100 || bids[0].Qty != 2 {
		t.Fatalf("bid depth = %+v", bids)
	}
	if len(asks) != 1 || asks[0].Price != 105 || asks[0].Qty != 3 {
		t.Fatalf("ask depth = %+v", asks)
	}

	st := eng.Stats()
	if st.Accepted != 4 || st.Rejected != 0 {
		t.Fatalf("stats = %+v", st)
	}

	// cold start against the same store: snapshot restores the book,
	// the ledger faults positions back in on demand
	eng2, snap2 := newStack(kv, nil)
	sb, sa, ss, err := snap2.Load()
	if err != nil {
		t.Fatal(err)
	}
	eng2.Restore(sb, sa, ss)

	bids2, asks2 := eng2.Depth()
	if fmt.Sprint(bids2) != fmt.Sprint(bids) || fmt.Sprint(asks2) != fmt.Sprint(asks) {
		t.Fatalf("restored depth mismatch: %v / %v vs %v / %v", bids2, asks2, bids, asks)
	}
	for user, want := range positions {
		if got := eng2.Position(user); got != want {
			t.Errorf("restored position[%s] = %d, want %d", user, got, want)
		}
	}
}

// TestPipelinePositionLimit verifies the admission check rejects a
// bus order that would breach the asset's position cap, and that a
// smaller order from the same user still lands.
func TestPipelinePositionLimit(t *testing.T) {
	kv := storage.NewMemStore()
	if err := kv.Set(ledger.PositionKey("heavy", "asset_1"), []byte("98")); err != nil {
		t.Fatal(err)
	}
	eng, snap := newStack(kv, map[string]int64{"asset_1": 100})

	runStream(t, eng, snap, []string{
		// projected 98+5=103 > 100: rejected
		`{"order_id":1,"side":"buy","price":100,"quantity":5,"order_type":"limit","user_id":"heavy"}`,
		// projected 98+2=100 <= 100: accepted
		`{"order_id":2,"side":"buy","price":100,"quantity":2,"order_type":"limit","user_id":"heavy"}`,
	})

	st := eng.Stats()
	if st.Accepted != 1 || st.Rejected != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if st.RestingOrders != 1 {
		t.Fatalf("resting = %d", st.RestingOrders)
	}
	// rejection touched neither the book nor the ledger
	if got := eng.Position("heavy"); got != 98 {
		t.Fatalf("position = %d", got)
	}
}

// TestPipelineArmedStopSurvivesRestart parks a stop order below the
// market, restarts from the snapshot, and checks the stop still fires
// once the price falls to its threshold.
func TestPipelineArmedStopSurvivesRestart(t *testing.T) {
	kv := storage.NewMemStore()
	eng, snap := newStack(kv, nil)

	runStream(t, eng, snap, []string{
		`{"order_id":1,"side":"buy","price":100,"quantity":5,"order_type":"limit","user_id":"alice"}`,
		`{"order_id":2,"side":"sell","price":110,"quantity":5,"order_type":"limit","user_id":"bob"}`,
		// stop-sell at 95: reference price 110 is above it, stays armed
		`{"order_id":3,"side":"sell","quantity":4,"order_type":"stop_limit","stop_price":95,"limit_price":90,"user_id":"carol"}`,
	})
	if st := eng.Stats(); st.PendingStops != 1 {
		t.Fatalf("pending stops = %d", st.PendingStops)
	}

	eng2, snap2 := newStack(kv, nil)
	sb, sa, ss, err := snap2.Load()
	if err != nil {
		t.Fatal(err)
	}
	eng2.Restore(sb, sa, ss)
	if st := eng2.Stats(); st.PendingStops != 1 {
		t.Fatalf("restored pending stops = %d", st.PendingStops)
	}

	// a low ask drags the reference price to 94 <= 95: the stop-sell
	// converts to a 90 limit and crosses alice's bid at 100
	runStream(t, eng2, snap2, []string{
		`{"order_id":4,"side":"sell","price":94,"quantity":1,"order_type":"limit","user_id":"eve"}`,
	})

	if st := eng2.Stats(); st.PendingStops != 0 {
		t.Fatalf("stop did not fire: %+v", st)
	}
	if got := eng2.Position("carol"); got != -4 {
		t.Fatalf("carol position = %d", got)
	}
	// alice bought 1 from eve and 4 from the converted stop
	if got := eng2.Position("alice"); got != 5 {
		t.Fatalf("alice position = %d", got)
	}
	if got := eng2.Position("eve"); got != -1 {
		t.Fatalf("eve position = %d", got)
	}
}
