// Package usercache implements the primary user index (§4.5): load-through
// by id or username, tick-based stat derivation on every read, dirty-set
// tracking, and the cascading flush that drives World/Message/Battle
// persistence from a single background timer.
package usercache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdrei/spacewars-cache/internal/store"
	"github.com/markdrei/spacewars-cache/pkg/locks"
	"github.com/markdrei/spacewars-cache/pkg/model"
)

// Flusher is the minimal surface UserCache needs from the caches below it
// in the dependency order to cascade a flushAllToDatabase call. WorldCache
// and battlecache.Cache satisfy it without usercache importing either
// package directly, which would otherwise create an import cycle through
// battlecache's own UserCache reference.
type Flusher interface {
	FlushToDatabase(ctx context.Context) error
}

// MessageStore is what UserCache needs from MessageCache: the flush
// cascade, plus CreateMessage so BattleCache can route its end-of-battle
// summary notification through UserCache's injected reference (§4.6/§4.7)
// instead of importing messagecache itself.
type MessageStore interface {
	Flusher
	CreateMessage(ctx context.Context, userID int64, text string) (int64, error)
}

// Cache is the process-global user cache singleton.
type Cache struct {
	reg *locks.Registry
	gw  store.Gateway
	cfg *config

	world    Flusher
	messages MessageStore
	battles  Flusher

	byID       map[int64]*model.User
	byUsername map[string]int64
	dirty      map[int64]struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New constructs a UserCache bound to reg and gw. world and messages are
// injected at construction time (§4.7 step 6); battles is injected later
// via SetBattleCache once BattleCache exists (step 7), breaking the
// otherwise-circular UserCache↔BattleCache dependency.
func New(reg *locks.Registry, gw store.Gateway, world Flusher, messages MessageStore, opts ...Option) *Cache {
	c := &Cache{
		reg:        reg,
		gw:         gw,
		cfg:        applyOptions(opts),
		world:      world,
		messages:   messages,
		byID:       make(map[int64]*model.User),
		byUsername: make(map[string]int64),
		dirty:      make(map[int64]struct{}),
		stopCh:     make(chan struct{}),
	}
	if c.cfg.enableAutoPersistence {
		c.startBackgroundFlush()
	}
	return c
}

// NotifyUser creates a message addressed to userID through the injected
// MessageCache, letting BattleCache deliver its end-of-battle summary
// without holding a MessageCache reference of its own.
func (c *Cache) NotifyUser(ctx context.Context, userID int64, text string) (int64, error) {
	return c.messages.CreateMessage(ctx, userID, text)
}

// SetBattleCache injects the BattleCache reference used by the flush
// cascade. Must be called once, during orchestrator startup, before any
// flush runs.
func (c *Cache) SetBattleCache(battles Flusher) {
	c.battles = battles
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
				if err := c.FlushAllToDatabase(context.Background()); err != nil {
					c.cfg.logger.Error("usercache: background flush failed", zap.Error(err))
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

// GetUserByID returns the cached User for id, load-through on miss, with
// UpdateStats applied before it is handed back.
func (c *Cache) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var out model.User
	err := locks.NewUnlocked(c.reg).AcquireUser(func(h locks.HeldUser) error {
		u, err := c.loadByIDLocked(ctx, h, id)
		if err != nil {
			return err
		}
		u.UpdateStats(time.Now().UnixMilli())
		out = *u
		return nil
	})
	return &out, err
}

// GetUserByUsername consults the username index first, load-through via
// the store by name on miss.
func (c *Cache) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var out model.User
	err := locks.NewUnlocked(c.reg).AcquireUser(func(h locks.HeldUser) error {
		if id, ok := c.byUsername[username]; ok {
			u := c.byID[id]
			u.UpdateStats(time.Now().UnixMilli())
			out = *u
			return nil
		}
		var rows []store.Row
		err := h.AcquireDatabase(func(locks.HeldDatabase) error {
			var qerr error
			rows, qerr = c.gw.Query(ctx, store.StmtUserSelectByName, username)
			return qerr
		})
		if err != nil {
			return &store.Failure{Op: "load user by name", Err: err}
		}
		if len(rows) == 0 {
			return errUserNotFound(username)
		}
		u := userFromRow(rows[0], c.cfg.inventoryRows, c.cfg.inventoryCols)
		c.byID[u.ID] = u
		c.byUsername[u.Username] = u.ID
		u.UpdateStats(time.Now().UnixMilli())
		out = *u
		return nil
	})
	return &out, err
}

func (c *Cache) loadByIDLocked(ctx context.Context, h locks.HeldUser, id int64) (*model.User, error) {
	if u, ok := c.byID[id]; ok {
		return u, nil
	}
	var rows []store.Row
	err := h.AcquireDatabase(func(locks.HeldDatabase) error {
		var qerr error
		rows, qerr = c.gw.Query(ctx, store.StmtUserSelectByID, id)
		return qerr
	})
	if err != nil {
		return nil, &store.Failure{Op: "load user", Err: err}
	}
	if len(rows) == 0 {
		return nil, &store.Failure{Op: "load user", Err: errUserNotFoundID(id)}
	}
	u := userFromRow(rows[0], c.cfg.inventoryRows, c.cfg.inventoryCols)
	c.byID[u.ID] = u
	c.byUsername[u.Username] = u.ID
	return u, nil
}

// UpdateUser stores user in the cache, marks it dirty, and applies
// UpdateStats before returning control to the caller.
func (c *Cache) UpdateUser(ctx context.Context, user *model.User) error {
	return locks.NewUnlocked(c.reg).AcquireUser(func(locks.HeldUser) error {
		user.UpdateStats(time.Now().UnixMilli())
		c.byID[user.ID] = user
		c.byUsername[user.Username] = user.ID
		c.dirty[user.ID] = struct{}{}
		c.cfg.metrics.SetDirtyCount("user", len(c.dirty))
		return nil
	})
}

// CreateUser inserts a brand-new user row synchronously (unlike messages,
// user creation has no async/optimistic path in the spec) and caches the
// result.
func (c *Cache) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	var id int64
	err := locks.NewUnlocked(c.reg).AcquireUser(func(h locks.HeldUser) error {
		return h.AcquireDatabase(func(locks.HeldDatabase) error {
			res, err := c.gw.Exec(ctx, store.StmtUserInsert, insertParams(user)...)
			if err != nil {
				return err
			}
			id = res.LastInsertedID
			user.ID = id
			c.byID[id] = user
			c.byUsername[user.Username] = id
			return nil
		})
	})
	return id, err
}

// FlushAllToDatabase persists every dirty user under USER then DATABASE,
// then fans out World, Message, and Battle flushes concurrently (each
// acquires its own lock independently, so there is no ordering dependency
// between them) and joins all three with a golang.org/x/sync/errgroup
// before returning. The caller sees the first error, if any;
// the other two flushes still run to completion.
func (c *Cache) FlushAllToDatabase(ctx context.Context) error {
	err := locks.NewUnlocked(c.reg).AcquireUser(func(h locks.HeldUser) error {
		start := time.Now()
		err := h.AcquireDatabase(func(locks.HeldDatabase) error {
			for id := range c.dirty {
				u := c.byID[id]
				if _, err := c.gw.Exec(ctx, store.StmtUserUpdate, updateParams(u)...); err != nil {
					return &store.Failure{Op: "flush user", Err: err}
				}
				delete(c.dirty, id)
			}
			return nil
		})
		if err != nil {
			return err
		}
		c.cfg.metrics.IncFlush("user")
		c.cfg.metrics.ObserveFlushDuration("user", time.Since(start))
		c.cfg.metrics.SetDirtyCount("user", len(c.dirty))
		return nil
	})
	if err != nil {
		return err
	}

	var g errgroup.Group
	if c.world != nil {
		g.Go(func() error { return c.world.FlushToDatabase(ctx) })
	}
	if c.messages != nil {
		g.Go(func() error { return c.messages.FlushToDatabase(ctx) })
	}
	if c.battles != nil {
		g.Go(func() error { return c.battles.FlushToDatabase(ctx) })
	}
	return g.Wait()
}

// Shutdown stops the background timer and performs a final cascaded flush:
// users first, then World/Message/Battle concurrently. Safe to call
// exactly once.
func (c *Cache) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return c.FlushAllToDatabase(ctx)
}

// Stats reports the number of cached users and the number currently dirty,
// for the CLI inspector's snapshot.
func (c *Cache) Stats(ctx context.Context) (cachedUsers, dirtyUsers int, err error) {
	err = locks.NewUnlocked(c.reg).AcquireUser(func(locks.HeldUser) error {
		cachedUsers = len(c.byID)
		dirtyUsers = len(c.dirty)
		return nil
	})
	return
}

type errUserNotFoundID int64

func (e errUserNotFoundID) Error() string { return "usercache: no such user id" }

type errUserNotFound string

func (e errUserNotFound) Error() string { return "usercache: no such username: " + string(e) }
