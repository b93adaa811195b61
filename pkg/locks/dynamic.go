package locks

// Context is the runtime-checked fallback described in spec.md §9: it
// carries the ordered tuple of held lock levels as a plain slice and
// enforces the strictly-increasing invariant with an explicit check instead
// of the type system. It exists for call sites that walk a variable-length
// prefix of the hierarchy — chiefly the lifecycle orchestrator, which
// acquires every level from CacheInit through Database in nested Acquire
// scopes during Start and releases them in reverse order before Start
// returns.
//
// A Context is immutable: Acquire returns a new Context with the level
// appended rather than mutating the receiver, so a caller cannot
// accidentally share a held-set across two concurrent units of work.
type Context struct {
	reg  *Registry
	held []Level
}

// NewContext returns an empty lock context bound to reg.
func NewContext(reg *Registry) Context {
	return Context{reg: reg}
}

// MaxHeld returns the highest level currently held, or 0 if none is held.
func (c Context) MaxHeld() Level {
	if len(c.held) == 0 {
		return 0
	}
	return c.held[len(c.held)-1]
}

// Holds reports whether level is currently held by this context.
func (c Context) Holds(level Level) bool {
	for _, h := range c.held {
		if h == level {
			return true
		}
	}
	return false
}

// Acquire takes an exclusive hold on level and runs scope with the extended
// context, releasing the lock on every exit path (including panics, which
// are re-raised after the lock is released). It fails with
// *LockOrderViolation if level <= MaxHeld(), or *LockAlreadyHeld if level is
// already held.
func (c Context) Acquire(level Level, scope func(Context) error) error {
	return c.acquire(level, false, scope)
}

// AcquireShared is identical to Acquire but takes a shared (reader) hold.
// Only LevelWorld and LevelDatabase support shared holds; any other level
// panics, matching the Registry's own restriction.
func (c Context) AcquireShared(level Level, scope func(Context) error) error {
	return c.acquire(level, true, scope)
}

func (c Context) acquire(level Level, shared bool, scope func(Context) error) error {
	if c.Holds(level) {
		return &LockAlreadyHeld{Level: level}
	}
	if level <= c.MaxHeld() {
		return &LockOrderViolation{Attempted: level, MaxHeld: c.MaxHeld()}
	}

	if shared {
		c.reg.lockShared(level)
		defer c.reg.unlockShared(level)
	} else {
		c.reg.lockExclusive(level)
		defer c.reg.unlockExclusive(level)
	}

	next := Context{
		reg:  c.reg,
		held: append(append([]Level(nil), c.held...), level),
	}
	return scope(next)
}

// WithLock is sugar for Acquire: acquire, run scope, release.
func (c Context) WithLock(level Level, scope func(Context) error) error {
	return c.Acquire(level, scope)
}
