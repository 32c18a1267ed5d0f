package ingest

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/quantora/matchbook/pkg/book"
	"github.com/quantora/matchbook/pkg/engine"
	"github.com/quantora/matchbook/pkg/snapshot"
)

// Loop drives the engine from an order source, one message at a time.
// Every failure class is drop-and-continue: a bad message never stops
// ingestion. The loop goroutine is the engine's single writer.
type Loop struct {
	src  Source
	eng  *engine.Engine
	snap *snapshot.Store
	log  *zap.SugaredLogger
}

func NewLoop(src Source, eng *engine.Engine, snap *snapshot.Store, log *zap.SugaredLogger) *Loop {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loop{src: src, eng: eng, snap: snap, log: log}
}

// Run processes messages until the context is canceled or the source
// is exhausted.
func (l *Loop) Run(ctx context.Context) error {
	for {
		data, err := l.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Errorw("order source read failed", "err", err)
			continue
		}
		l.handle(data)
	}
}

// handle runs one message to completion. A panic anywhere in decoding
// or matching is confined to that message.
func (l *Loop) handle(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("order processing panic, message dropped", "panic", r)
		}
	}()

	order, err := Decode(data)
	if err != nil {
		l.log.Errorw("order message dropped", "err", err)
		return
	}

	res, fills, err := l.eng.Submit(order)
	if err != nil {
		l.log.Errorw("order rejected by engine", "order_id", order.ID, "err", err)
		return
	}
	if res != book.Accepted {
		l.log.Infow("order rejected",
			"order_id", order.ID, "user", order.UserID, "result", res.String())
		return
	}

	l.log.Infow("order processed",
		"order_id", order.ID, "kind", order.Kind.String(), "fills", len(fills))

	// Persist the post-match book. Best effort: a failing store never
	// blocks the next message.
	bids, asks, stops := l.eng.Export()
	if err := l.snap.Write(bids, asks, stops); err != nil {
		l.log.Warnw("snapshot write failed", "err", err)
	}
}
