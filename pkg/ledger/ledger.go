// Package ledger tracks per-(user, asset) net signed positions used
// for pre-trade risk limiting. The in-memory map is the in-process
// source of truth; every change is written through to the durable
// store best-effort.
package ledger

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/quantora/matchbook/pkg/storage"
)

type posKey struct {
	user  string
	asset string
}

// Ledger is not safe for concurrent use; callers serialize access the
// same way they serialize book mutations.
type Ledger struct {
	store  storage.Store
	limits map[string]int64 // asset -> max position; absent = unbounded
	cache  map[posKey]int64
	loaded map[posKey]bool
	log    *zap.SugaredLogger
}

func New(store storage.Store, limits map[string]int64, log *zap.SugaredLogger) *Ledger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if limits == nil {
		limits = map[string]int64{}
	}
	return &Ledger{
		store:  store,
		limits: limits,
		cache:  make(map[posKey]int64),
		loaded: make(map[posKey]bool),
		log:    log,
	}
}

// PositionKey is the durable-store key for one (user, asset) position.
func PositionKey(user, asset string) string {
	return fmt.Sprintf("user:%s:asset:%s", user, asset)
}

// Get returns the current net position, zero when unset. The first
// read for a pair faults the value in from the store.
func (l *Ledger) Get(user, asset string) int64 {
	k := posKey{user, asset}
	if l.loaded[k] {
		return l.cache[k]
	}
	l.loaded[k] = true

	val, err := l.store.Get(PositionKey(user, asset))
	if err != nil {
		if err != storage.ErrNotFound {
			l.log.Warnw("position read failed, assuming zero",
				"user", user, "asset", asset, "err", err)
		}
		return 0
	}
	pos, err := strconv.ParseInt(string(val), 10, 64)
	if err != nil {
		l.log.Warnw("corrupt position value, assuming zero",
			"user", user, "asset", asset, "value", string(val))
		return 0
	}
	l.cache[k] = pos
	return pos
}

// Projected returns the position the user would hold after delta is
// applied. It never mutates.
func (l *Ledger) Projected(user, asset string, delta int64) int64 {
	return l.Get(user, asset) + delta
}

// Apply persists Get + delta as the new position. It is called exactly
// once per fill per counterparty and is never rolled back; callers
// must not invoke it for rejected orders.
func (l *Ledger) Apply(user, asset string, delta int64) {
	k := posKey{user, asset}
	next := l.Get(user, asset) + delta
	l.cache[k] = next
	l.loaded[k] = true

	key := PositionKey(user, asset)
	if err := l.store.Set(key, []byte(strconv.FormatInt(next, 10))); err != nil {
		l.log.Warnw("position write failed, in-memory value retained",
			"key", key, "err", err)
	}
	l.log.Infow("position updated", "user", user, "asset", asset, "position", next)
}

// LimitFor returns the configured position limit for an asset. The
// second return is false when the asset is unbounded.
func (l *Ledger) LimitFor(asset string) (int64, bool) {
	limit, ok := l.limits[asset]
	return limit, ok
}
