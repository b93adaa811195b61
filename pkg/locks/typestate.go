package locks

// This file implements the compile-time checked half of the lock
// hierarchy. Go has no const-generics or dependent types, so there is no
// single parametric LockContext[Levels...] that could reject an
// out-of-order Acquire at compile time for an arbitrary level sequence.
// Instead we enumerate one concrete type per prefix of the hierarchy —
// Unlocked, HeldCacheInit, HeldWorld, HeldUser, HeldMessage, HeldBattle,
// HeldDatabase — and give each type only the AcquireX methods for levels
// strictly greater than the one it represents. A HeldUser value has no
// AcquireCacheInit or AcquireWorld method at all, so reacquiring a
// lower-or-equal level is a compile error, not a runtime check.
//
// Every Held* type wraps the dynamic Context internally (each type is a
// distinct Go type, but all share the same held-levels bookkeeping and the
// same Registry), so the runtime invariant in dynamic.go is still enforced
// underneath as defense in depth — a belt-and-braces duplicate of what the
// type system already guarantees here, and the only thing standing between
// a caller and a bug for the handful of call sites that construct a Held*
// value directly instead of through Acquire (tests, mostly).

// Unlocked is the empty lock context: a unit of work starts here.
type Unlocked struct{ ctx Context }

// NewUnlocked returns an empty lock context bound to reg.
func NewUnlocked(reg *Registry) Unlocked {
	return Unlocked{ctx: NewContext(reg)}
}

// HeldCacheInit is held after a successful AcquireCacheInit.
type HeldCacheInit struct{ ctx Context }

// HeldWorld is held after a successful AcquireWorld (shared or exclusive).
type HeldWorld struct{ ctx Context }

// HeldUser is held after a successful AcquireUser.
type HeldUser struct{ ctx Context }

// HeldMessage is held after a successful AcquireMessage.
type HeldMessage struct{ ctx Context }

// HeldBattle is held after a successful AcquireBattle.
type HeldBattle struct{ ctx Context }

// HeldDatabase is held after a successful AcquireDatabase (shared or
// exclusive). Database is the terminal level: HeldDatabase exposes no
// further AcquireX methods.
type HeldDatabase struct{ ctx Context }

// Context exposes the underlying dynamic context, for code that needs to
// hand a lock state across an API boundary that only knows the dynamic
// form (e.g. a store.Gateway method that accepts locks.Context).
func (h HeldCacheInit) Context() Context { return h.ctx }
func (h HeldWorld) Context() Context     { return h.ctx }
func (h HeldUser) Context() Context      { return h.ctx }
func (h HeldMessage) Context() Context   { return h.ctx }
func (h HeldBattle) Context() Context    { return h.ctx }
func (h HeldDatabase) Context() Context  { return h.ctx }

/*
   ---------------- Unlocked: may acquire anything ----------------
*/

func (u Unlocked) AcquireCacheInit(scope func(HeldCacheInit) error) error {
	return u.ctx.Acquire(LevelCacheInit, func(next Context) error {
		return scope(HeldCacheInit{ctx: next})
	})
}

func (u Unlocked) AcquireWorld(scope func(HeldWorld) error) error {
	return u.ctx.Acquire(LevelWorld, func(next Context) error {
		return scope(HeldWorld{ctx: next})
	})
}

func (u Unlocked) AcquireWorldShared(scope func(HeldWorld) error) error {
	return u.ctx.AcquireShared(LevelWorld, func(next Context) error {
		return scope(HeldWorld{ctx: next})
	})
}

func (u Unlocked) AcquireUser(scope func(HeldUser) error) error {
	return u.ctx.Acquire(LevelUser, func(next Context) error {
		return scope(HeldUser{ctx: next})
	})
}

func (u Unlocked) AcquireMessage(scope func(HeldMessage) error) error {
	return u.ctx.Acquire(LevelMessage, func(next Context) error {
		return scope(HeldMessage{ctx: next})
	})
}

func (u Unlocked) AcquireBattle(scope func(HeldBattle) error) error {
	return u.ctx.Acquire(LevelBattle, func(next Context) error {
		return scope(HeldBattle{ctx: next})
	})
}

func (u Unlocked) AcquireDatabase(scope func(HeldDatabase) error) error {
	return u.ctx.Acquire(LevelDatabase, func(next Context) error {
		return scope(HeldDatabase{ctx: next})
	})
}

func (u Unlocked) AcquireDatabaseShared(scope func(HeldDatabase) error) error {
	return u.ctx.AcquireShared(LevelDatabase, func(next Context) error {
		return scope(HeldDatabase{ctx: next})
	})
}

/*
   ---------------- HeldCacheInit: World, User, Message, Battle, Database ----------------
*/

func (h HeldCacheInit) AcquireWorld(scope func(HeldWorld) error) error {
	return h.ctx.Acquire(LevelWorld, func(next Context) error { return scope(HeldWorld{ctx: next}) })
}

func (h HeldCacheInit) AcquireUser(scope func(HeldUser) error) error {
	return h.ctx.Acquire(LevelUser, func(next Context) error { return scope(HeldUser{ctx: next}) })
}

func (h HeldCacheInit) AcquireMessage(scope func(HeldMessage) error) error {
	return h.ctx.Acquire(LevelMessage, func(next Context) error { return scope(HeldMessage{ctx: next}) })
}

func (h HeldCacheInit) AcquireBattle(scope func(HeldBattle) error) error {
	return h.ctx.Acquire(LevelBattle, func(next Context) error { return scope(HeldBattle{ctx: next}) })
}

func (h HeldCacheInit) AcquireDatabase(scope func(HeldDatabase) error) error {
	return h.ctx.Acquire(LevelDatabase, func(next Context) error { return scope(HeldDatabase{ctx: next}) })
}

/*
   ---------------- HeldWorld: User, Message, Battle, Database ----------------
*/

func (h HeldWorld) AcquireUser(scope func(HeldUser) error) error {
	return h.ctx.Acquire(LevelUser, func(next Context) error { return scope(HeldUser{ctx: next}) })
}

func (h HeldWorld) AcquireMessage(scope func(HeldMessage) error) error {
	return h.ctx.Acquire(LevelMessage, func(next Context) error { return scope(HeldMessage{ctx: next}) })
}

func (h HeldWorld) AcquireBattle(scope func(HeldBattle) error) error {
	return h.ctx.Acquire(LevelBattle, func(next Context) error { return scope(HeldBattle{ctx: next}) })
}

func (h HeldWorld) AcquireDatabase(scope func(HeldDatabase) error) error {
	return h.ctx.Acquire(LevelDatabase, func(next Context) error { return scope(HeldDatabase{ctx: next}) })
}

/*
   ---------------- HeldUser: Message, Battle, Database ----------------
*/

func (h HeldUser) AcquireMessage(scope func(HeldMessage) error) error {
	return h.ctx.Acquire(LevelMessage, func(next Context) error { return scope(HeldMessage{ctx: next}) })
}

func (h HeldUser) AcquireBattle(scope func(HeldBattle) error) error {
	return h.ctx.Acquire(LevelBattle, func(next Context) error { return scope(HeldBattle{ctx: next}) })
}

func (h HeldUser) AcquireDatabase(scope func(HeldDatabase) error) error {
	return h.ctx.Acquire(LevelDatabase, func(next Context) error { return scope(HeldDatabase{ctx: next}) })
}

/*
   ---------------- HeldMessage: Battle, Database ----------------
*/

func (h HeldMessage) AcquireBattle(scope func(HeldBattle) error) error {
	return h.ctx.Acquire(LevelBattle, func(next Context) error { return scope(HeldBattle{ctx: next}) })
}

func (h HeldMessage) AcquireDatabase(scope func(HeldDatabase) error) error {
	return h.ctx.Acquire(LevelDatabase, func(next Context) error { return scope(HeldDatabase{ctx: next}) })
}

/*
   ---------------- HeldBattle: Database ----------------
*/

func (h HeldBattle) AcquireDatabase(scope func(HeldDatabase) error) error {
	return h.ctx.Acquire(LevelDatabase, func(next Context) error { return scope(HeldDatabase{ctx: next}) })
}

func (h HeldBattle) AcquireDatabaseShared(scope func(HeldDatabase) error) error {
	return h.ctx.AcquireShared(LevelDatabase, func(next Context) error { return scope(HeldDatabase{ctx: next}) })
}

// HeldDatabase is terminal: Database is the highest level in the
// hierarchy, so no further AcquireX method exists on it.
