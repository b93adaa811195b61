// Package battlecache implements the in-flight battle index (§4.6):
// battle-id keyed storage, an activeBattlesByUser lookup maintained as an
// invariant of battleEndTime, and an end-of-battle notification that
// closes the loop with messagecache's summarization classifier.
package battlecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markdrei/spacewars-cache/internal/store"
	"github.com/markdrei/spacewars-cache/pkg/locks"
	"github.com/markdrei/spacewars-cache/pkg/model"
)

// Notifier is the surface BattleCache needs from UserCache to deliver an
// end-of-battle summary message without importing messagecache itself
// (UserCache already holds that reference — see usercache.Cache.NotifyUser).
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) (int64, error)
}

// Cache is the process-global battle cache singleton.
type Cache struct {
	reg   *locks.Registry
	gw    store.Gateway
	cfg   *config
	users Notifier

	battles             map[int64]*model.Battle
	activeBattlesByUser map[int64]int64
	dirty               map[int64]struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New constructs a BattleCache bound to reg and gw, with a reference to
// UserCache (§4.7 step 7) for end-of-battle notifications.
func New(reg *locks.Registry, gw store.Gateway, users Notifier, opts ...Option) *Cache {
	c := &Cache{
		reg:                 reg,
		gw:                  gw,
		cfg:                 applyOptions(opts),
		users:               users,
		battles:             make(map[int64]*model.Battle),
		activeBattlesByUser: make(map[int64]int64),
		dirty:               make(map[int64]struct{}),
		stopCh:              make(chan struct{}),
	}
	if c.cfg.enableAutoPersistence {
		c.startBackgroundFlush()
	}
	return c
}

func (c *Cache) startBackgroundFlush() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.persistInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.FlushToDatabase(context.Background()); err != nil {
					c.cfg.logger.Error("battlecache: background flush failed", zap.Error(err))
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

// CreateBattle inserts a brand-new battle synchronously under BATTLE then
// DATABASE, caches it, and registers both participants in
// activeBattlesByUser (a new battle always starts with battleEndTime ==
// nil).
func (c *Cache) CreateBattle(ctx context.Context, b *model.Battle) (int64, error) {
	var id int64
	err := locks.NewUnlocked(c.reg).AcquireBattle(func(h locks.HeldBattle) error {
		return h.AcquireDatabase(func(locks.HeldDatabase) error {
			res, err := c.gw.Exec(ctx, store.StmtBattleInsert, insertParams(b)...)
			if err != nil {
				return &store.Failure{Op: "insert battle", Err: err}
			}
			id = res.LastInsertedID
			b.ID = id
			c.battles[id] = b
			c.activeBattlesByUser[b.AttackerID] = id
			c.activeBattlesByUser[b.AttackeeID] = id
			return nil
		})
	})
	return id, err
}

// LoadBattleIfNeeded returns the battle with the given id, going to the
// store only on cache miss. A completed battle (battleEndTime != nil) is
// returned but not retained in the cache (§4.6).
func (c *Cache) LoadBattleIfNeeded(ctx context.Context, id int64) (*model.Battle, error) {
	var out *model.Battle
	err := locks.NewUnlocked(c.reg).AcquireBattle(func(h locks.HeldBattle) error {
		if b, ok := c.battles[id]; ok {
			out = b
			return nil
		}
		var rows []store.Row
		err := h.AcquireDatabase(func(locks.HeldDatabase) error {
			var qerr error
			rows, qerr = c.gw.Query(ctx, store.StmtBattleSelectByID, id)
			return qerr
		})
		if err != nil {
			return &store.Failure{Op: "load battle", Err: err}
		}
		if len(rows) == 0 {
			return fmt.Errorf("battlecache: no such battle id %d", id)
		}
		b := battleFromRow(rows[0])
		if b.IsActive() {
			c.battles[id] = b
			c.activeBattlesByUser[b.AttackerID] = id
			c.activeBattlesByUser[b.AttackeeID] = id
		}
		out = b
		return nil
	})
	return out, err
}

// UpdateBattle stores b in the cache and marks it dirty. If b has just
// transitioned to battleEndTime != nil, both participants are removed
// from activeBattlesByUser and an end-of-battle summary is delivered to
// each via the injected UserCache notifier.
func (c *Cache) UpdateBattle(ctx context.Context, b *model.Battle) error {
	ended := false
	err := locks.NewUnlocked(c.reg).AcquireBattle(func(locks.HeldBattle) error {
		c.battles[b.ID] = b
		c.dirty[b.ID] = struct{}{}
		c.cfg.metrics.SetDirtyCount("battle", len(c.dirty))

		if b.BattleEndTimeMs == nil {
			return nil
		}
		ended = c.activeBattlesByUser[b.AttackerID] == b.ID || c.activeBattlesByUser[b.AttackeeID] == b.ID
		delete(c.activeBattlesByUser, b.AttackerID)
		delete(c.activeBattlesByUser, b.AttackeeID)
		return nil
	})
	if err != nil || !ended {
		return err
	}
	// Delivery takes MESSAGE, a lower level, so it runs after BATTLE is released.
	return c.notifyOutcome(ctx, b)
}

func (c *Cache) notifyOutcome(ctx context.Context, b *model.Battle) error {
	if c.users == nil || b.WinnerID == nil || b.LoserID == nil {
		return nil
	}
	winMsg := fmt.Sprintf("You defeated Opponent #%d!", opponentOf(b, *b.WinnerID))
	loseMsg := fmt.Sprintf("You were defeated by Opponent #%d.", opponentOf(b, *b.LoserID))
	if _, err := c.users.NotifyUser(ctx, *b.WinnerID, winMsg); err != nil {
		return err
	}
	if _, err := c.users.NotifyUser(ctx, *b.LoserID, loseMsg); err != nil {
		return err
	}
	return nil
}

func opponentOf(b *model.Battle, userID int64) int64 {
	if userID == b.AttackerID {
		return b.AttackeeID
	}
	return b.AttackerID
}

// FlushToDatabase persists every dirty battle under BATTLE then DATABASE.
func (c *Cache) FlushToDatabase(ctx context.Context) error {
	return locks.NewUnlocked(c.reg).AcquireBattle(func(h locks.HeldBattle) error {
		start := time.Now()
		err := h.AcquireDatabase(func(locks.HeldDatabase) error {
			for id := range c.dirty {
				b := c.battles[id]
				if _, err := c.gw.Exec(ctx, store.StmtBattleUpdate, updateParams(b)...); err != nil {
					return &store.Failure{Op: "flush battle", Err: err}
				}
				delete(c.dirty, id)
			}
			return nil
		})
		if err != nil {
			return err
		}
		c.cfg.metrics.IncFlush("battle")
		c.cfg.metrics.ObserveFlushDuration("battle", time.Since(start))
		c.cfg.metrics.SetDirtyCount("battle", len(c.dirty))
		return nil
	})
}

// Shutdown stops the background timer and performs a final flush. Safe to
// call exactly once.
func (c *Cache) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return c.FlushToDatabase(ctx)
}

// Stats reports the number of cached battles, the number currently active
// (neither participant freed), and the number dirty, for the CLI
// inspector's snapshot.
func (c *Cache) Stats(ctx context.Context) (cached, active, dirty int, err error) {
	err = locks.NewUnlocked(c.reg).AcquireBattle(func(locks.HeldBattle) error {
		cached = len(c.battles)
		active = len(c.activeBattlesByUser) / 2
		dirty = len(c.dirty)
		return nil
	})
	return
}
