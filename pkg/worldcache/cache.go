// Package worldcache holds the single shared World snapshot (§4.4):
// load-through initialization with coordinate normalization, shared reads,
// exclusive mutation, and a full-snapshot flush.
package worldcache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/markdrei/spacewars-cache/internal/store"
	"github.com/markdrei/spacewars-cache/pkg/locks"
	"github.com/markdrei/spacewars-cache/pkg/model"
)

// Cache is the process-global world cache singleton. Every field below is
// guarded by locks.LevelWorld: exported methods only touch them while
// holding WORLD (shared for reads, exclusive for mutation).
type Cache struct {
	reg *locks.Registry
	gw  store.Gateway
	cfg *config

	world *model.World
	dirty bool
}

// New constructs a WorldCache bound to reg and gw. The world is not
// loaded until Initialize is called by the lifecycle orchestrator.
func New(reg *locks.Registry, gw store.Gateway, opts ...Option) *Cache {
	cfg := applyOptions(opts)
	return &Cache{
		reg: reg,
		gw:  gw,
		cfg: cfg,
		world: &model.World{
			Bounds: cfg.bounds,
		},
	}
}

// Initialize performs the eager load-through described in §4.7 step 4:
// every SpaceObject is read from the store and normalized into
// [0, bounds) before being cached. This is the one call in the package
// that does not acquire WORLD itself: the lifecycle orchestrator already
// holds the full CacheInit-through-Database chain as its coarse startup
// lock (the runtime locks.Context, not the typestate API, since the
// orchestrator's held-set grows one level at a time across unrelated
// caches) when it calls Initialize, and re-acquiring WORLD here would
// trip LockAlreadyHeld.
func (c *Cache) Initialize(ctx context.Context, held locks.Context) error {
	if !held.Holds(locks.LevelWorld) {
		return &locks.LockNotHeld{Level: locks.LevelWorld}
	}
	return c.loadLocked(ctx)
}

func (c *Cache) loadLocked(ctx context.Context) error {
	rows, err := c.gw.Query(ctx, store.StmtSpaceObjectSelectAll)
	if err != nil {
		return &store.Failure{Op: "load world", Err: err}
	}
	objects := make([]model.SpaceObject, 0, len(rows))
	for _, row := range rows {
		objects = append(objects, model.SpaceObject{
			ID:                   row.Int64("id"),
			Type:                 model.ObjectType(row.String("type")),
			X:                    row.Float64("x"),
			Y:                    row.Float64("y"),
			Speed:                row.Float64("speed"),
			Angle:                row.Float64("angle"),
			LastPositionUpdateMs: row.Int64("last_position_update_ms"),
		})
	}
	c.world.Objects = objects
	c.world.Normalize()
	return nil
}

// Get returns a defensive copy of the current World snapshot, under a
// shared WORLD hold.
func (c *Cache) Get(ctx context.Context) (model.World, error) {
	var out model.World
	err := locks.NewUnlocked(c.reg).AcquireWorldShared(func(locks.HeldWorld) error {
		out = c.cloneWorld()
		return nil
	})
	return out, err
}

func (c *Cache) cloneWorld() model.World {
	out := model.World{Bounds: c.world.Bounds}
	out.Objects = make([]model.SpaceObject, len(c.world.Objects))
	copy(out.Objects, c.world.Objects)
	return out
}

// Update replaces the cached object list wholesale under an exclusive
// WORLD hold, normalizing every incoming coordinate and marking the world
// dirty.
func (c *Cache) Update(ctx context.Context, objects []model.SpaceObject) error {
	return locks.NewUnlocked(c.reg).AcquireWorld(func(locks.HeldWorld) error {
		c.world.Objects = append([]model.SpaceObject(nil), objects...)
		c.world.Normalize()
		c.dirty = true
		return nil
	})
}

// FindObject returns a copy of the object with the given id, under shared
// WORLD, and whether it was found.
func (c *Cache) FindObject(ctx context.Context, id int64) (model.SpaceObject, bool, error) {
	var found model.SpaceObject
	var ok bool
	err := locks.NewUnlocked(c.reg).AcquireWorldShared(func(locks.HeldWorld) error {
		for _, o := range c.world.Objects {
			if o.ID == id {
				found, ok = o, true
				return nil
			}
		}
		return nil
	})
	return found, ok, err
}

// SetShipSpeed updates the named ship's speed under exclusive WORLD and
// marks the world dirty.
func (c *Cache) SetShipSpeed(ctx context.Context, shipID int64, speed float64) error {
	return c.mutateObject(shipID, func(o *model.SpaceObject) { o.Speed = speed })
}

// TeleportShip sets the named ship's position, normalizing into the
// world's bounds, under exclusive WORLD.
func (c *Cache) TeleportShip(ctx context.Context, shipID int64, x, y float64) error {
	return c.mutateObject(shipID, func(o *model.SpaceObject) {
		o.X = model.NormalizeCoordinate(x, c.world.Bounds.Width)
		o.Y = model.NormalizeCoordinate(y, c.world.Bounds.Height)
	})
}

func (c *Cache) mutateObject(id int64, mutate func(*model.SpaceObject)) error {
	return locks.NewUnlocked(c.reg).AcquireWorld(func(locks.HeldWorld) error {
		for i := range c.world.Objects {
			if c.world.Objects[i].ID == id {
				mutate(&c.world.Objects[i])
				c.dirty = true
				return nil
			}
		}
		return &ObjectNotFoundError{ID: id}
	})
}

// InsertObject assigns the object a store id synchronously (under nested
// DATABASE), appends it to the cache, and marks the world dirty.
func (c *Cache) InsertObject(ctx context.Context, obj model.SpaceObject) (int64, error) {
	var id int64
	err := locks.NewUnlocked(c.reg).AcquireWorld(func(h locks.HeldWorld) error {
		return h.AcquireDatabase(func(locks.HeldDatabase) error {
			res, err := c.gw.Exec(ctx, store.StmtSpaceObjectInsert,
				string(obj.Type), obj.X, obj.Y, obj.Speed, obj.Angle, obj.LastPositionUpdateMs)
			if err != nil {
				return &store.Failure{Op: "insert space object", Err: err}
			}
			id = res.LastInsertedID
			obj.ID = id
			obj.X = model.NormalizeCoordinate(obj.X, c.world.Bounds.Width)
			obj.Y = model.NormalizeCoordinate(obj.Y, c.world.Bounds.Height)
			c.world.Objects = append(c.world.Objects, obj)
			c.dirty = true
			return nil
		})
	})
	return id, err
}

// DeleteObject removes the object both from the store and the cache,
// under WORLD then DATABASE.
func (c *Cache) DeleteObject(ctx context.Context, id int64) error {
	return locks.NewUnlocked(c.reg).AcquireWorld(func(h locks.HeldWorld) error {
		return h.AcquireDatabase(func(locks.HeldDatabase) error {
			if _, err := c.gw.Exec(ctx, store.StmtSpaceObjectDelete, id); err != nil {
				return &store.Failure{Op: "delete space object", Err: err}
			}
			for i, o := range c.world.Objects {
				if o.ID == id {
					c.world.Objects = append(c.world.Objects[:i], c.world.Objects[i+1:]...)
					break
				}
			}
			c.dirty = true
			return nil
		})
	})
}

// FlushToDatabase writes every cached object back to the store under
// WORLD then DATABASE. Each object is written as an update by id (no
// insert is issued), and the method is a no-op when the world is not dirty.
func (c *Cache) FlushToDatabase(ctx context.Context) error {
	return locks.NewUnlocked(c.reg).AcquireWorld(func(h locks.HeldWorld) error {
		if !c.dirty {
			return nil
		}
		start := time.Now()
		err := h.AcquireDatabase(func(locks.HeldDatabase) error {
			for _, o := range c.world.Objects {
				_, err := c.gw.Exec(ctx, store.StmtSpaceObjectUpdate,
					string(o.Type), o.X, o.Y, o.Speed, o.Angle, o.LastPositionUpdateMs, o.ID)
				if err != nil {
					return &store.Failure{Op: "flush world", Err: err}
				}
			}
			c.dirty = false
			return nil
		})
		if err != nil {
			c.cfg.logger.Error("worldcache: flush failed", zap.Error(err))
			return err
		}
		c.cfg.metrics.IncFlush("world")
		c.cfg.metrics.ObserveFlushDuration("world", time.Since(start))
		return nil
	})
}

// Stats reports the number of cached objects and whether the world has
// unflushed mutations, for the CLI inspector's snapshot.
func (c *Cache) Stats(ctx context.Context) (objectCount int, dirty bool, err error) {
	err = locks.NewUnlocked(c.reg).AcquireWorldShared(func(locks.HeldWorld) error {
		objectCount = len(c.world.Objects)
		dirty = c.dirty
		return nil
	})
	return
}

// ObjectNotFoundError reports that an operation targeted a SpaceObject id
// absent from the cache.
type ObjectNotFoundError struct{ ID int64 }

func (e *ObjectNotFoundError) Error() string {
	return "worldcache: no such object"
}
