// Package lifecycle implements the single startup/shutdown routine
// (§4.7): acquire the full lock hierarchy once as a coarse startup gate,
// wire the four caches together in dependency order, then release.
package lifecycle

import (
	"context"

	"github.com/markdrei/spacewars-cache/internal/store"
	"github.com/markdrei/spacewars-cache/pkg/battlecache"
	"github.com/markdrei/spacewars-cache/pkg/locks"
	"github.com/markdrei/spacewars-cache/pkg/messagecache"
	"github.com/markdrei/spacewars-cache/pkg/model"
	"github.com/markdrei/spacewars-cache/pkg/usercache"
	"github.com/markdrei/spacewars-cache/pkg/worldcache"
)

// Orchestrator owns the four cache singletons and the registry backing
// their locks, and is the only thing that ever acquires every level from
// CacheInit through Database in a single chain.
type Orchestrator struct {
	reg *locks.Registry
	gw  store.Gateway

	World    *worldcache.Cache
	Messages *messagecache.Cache
	Users    *usercache.Cache
	Battles  *battlecache.Cache

	startedOnce bool
}

// Options bundles the per-cache construction options the orchestrator
// threads down during Start.
type Options struct {
	WorldOptions    []worldcache.Option
	MessageOptions  []messagecache.Option
	UserOptions     []usercache.Option
	BattleOptions   []battlecache.Option
	WorldBounds     model.WorldBounds
}

// Start runs the startup routine described in §4.7: acquire every lock
// level in order, bind the given store gateway, load the world, and initialize the
// remaining three caches bottom-up with their dependencies injected,
// releasing every lock (in reverse acquisition order, via defer) before
// returning.
func Start(ctx context.Context, gw store.Gateway, opts Options) (*Orchestrator, error) {
	reg := locks.NewRegistry()
	o := &Orchestrator{reg: reg, gw: gw}

	worldOpts := opts.WorldOptions
	if opts.WorldBounds != (model.WorldBounds{}) {
		worldOpts = append(worldOpts, worldcache.WithBounds(opts.WorldBounds))
	}

	err := locks.NewContext(reg).Acquire(locks.LevelCacheInit, func(held locks.Context) error {
		return held.Acquire(locks.LevelWorld, func(held locks.Context) error {
			return held.Acquire(locks.LevelUser, func(held locks.Context) error {
				return held.Acquire(locks.LevelMessage, func(held locks.Context) error {
					return held.Acquire(locks.LevelBattle, func(held locks.Context) error {
						return held.Acquire(locks.LevelDatabase, func(held locks.Context) error {
							return o.initializeLocked(ctx, held, worldOpts, opts.MessageOptions, opts.UserOptions, opts.BattleOptions)
						})
					})
				})
			})
		})
	})
	if err != nil {
		return nil, err
	}
	o.startedOnce = true
	return o, nil
}

func (o *Orchestrator) initializeLocked(
	ctx context.Context,
	held locks.Context,
	worldOpts []worldcache.Option,
	messageOpts []messagecache.Option,
	userOpts []usercache.Option,
	battleOpts []battlecache.Option,
) error {
	o.World = worldcache.New(o.reg, o.gw, worldOpts...)
	if err := o.World.Initialize(ctx, held); err != nil {
		return err
	}

	o.Messages = messagecache.New(o.reg, o.gw, messageOpts...)

	o.Users = usercache.New(o.reg, o.gw, o.World, o.Messages, userOpts...)

	o.Battles = battlecache.New(o.reg, o.gw, o.Users, battleOpts...)
	o.Users.SetBattleCache(o.Battles)

	return nil
}

// Shutdown performs the final flush. Users.Shutdown stops its own timer,
// flushes users, and then flushes World, Messages, and Battles
// concurrently, so there is no fixed order among those three.
// Battles.Shutdown is called afterward to stop BattleCache's own
// independent timer (§4.6) and flush again — its dirty set is typically
// already empty by the time it runs, since UserCache's cascade flushed it
// moments earlier. Safe to call exactly once.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if err := o.Users.Shutdown(ctx); err != nil {
		return err
	}
	return o.Battles.Shutdown(ctx)
}
