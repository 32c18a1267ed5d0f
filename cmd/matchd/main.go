package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantora/matchbook/params"
	"github.com/quantora/matchbook/pkg/api"
	"github.com/quantora/matchbook/pkg/book"
	"github.com/quantora/matchbook/pkg/engine"
	"github.com/quantora/matchbook/pkg/ingest"
	"github.com/quantora/matchbook/pkg/ledger"
	"github.com/quantora/matchbook/pkg/snapshot"
	"github.com/quantora/matchbook/pkg/storage"
	"github.com/quantora/matchbook/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("matchd starting", "asset", cfg.AssetSymbol)

	// Durable store. Unreachable storage is not fatal: the engine
	// keeps matching with in-memory persistence only.
	var store storage.Store
	if ps, err := storage.NewPebbleStore(cfg.Storage.PebblePath); err != nil {
		sugar.Errorw("durable store unavailable, continuing in-memory",
			"path", cfg.Storage.PebblePath, "err", err)
		store = storage.NewMemStore()
	} else {
		store = ps
	}
	defer store.Close()

	var wal storage.WAL = storage.NewNopWAL()
	if cfg.Storage.WALPath != "" {
		if fw, err := storage.NewFileWAL(cfg.Storage.WALPath); err != nil {
			sugar.Warnw("order wal disabled", "err", err)
		} else {
			wal = fw
			defer fw.Close()
		}
	}

	led := ledger.New(store, cfg.PositionLimits, sugar)

	// The API server consumes fills but is built after the engine;
	// route through the pointer so early fills are simply unobserved.
	var srv *api.Server
	eng := engine.New(engine.Config{
		Asset:  cfg.AssetSymbol,
		Ledger: led,
		WAL:    wal,
		OnFill: func(f book.Fill) {
			if srv != nil {
				srv.PublishFill(f)
			}
		},
		Log: sugar,
	})

	snap := snapshot.NewStore(store, sugar)

	if cfg.Storage.WALReplay {
		n, err := storage.ReplayWAL(cfg.Storage.WALPath, eng.Replay)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			sugar.Warnw("wal replay incomplete", "replayed", n, "err", err)
		} else {
			sugar.Infow("wal replay finished", "replayed", n)
		}
	} else if bids, asks, stops, err := snap.Load(); err != nil {
		sugar.Warnw("snapshot load failed, starting with empty book", "err", err)
	} else {
		eng.Restore(bids, asks, stops)
	}

	srv = api.NewServer(eng, sugar)
	go func() {
		if err := srv.Start(cfg.APIAddr); err != nil {
			sugar.Errorw("api server stopped", "err", err)
		}
	}()

	src := ingest.NewKafkaSource(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := ingest.NewLoop(src, eng, snap, sugar)
	sugar.Infow("listening for orders",
		"brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("ingest loop stopped", "err", err)
	}
	sugar.Info("matchd shutdown complete")
}
