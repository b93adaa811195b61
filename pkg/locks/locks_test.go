package locks

import (
	"errors"
	"testing"
)

func TestContext_StrictOrdering(t *testing.T) {
	reg := NewRegistry()
	ctx := NewContext(reg)

	err := ctx.Acquire(LevelUser, func(withUser Context) error {
		if withUser.MaxHeld() != LevelUser {
			t.Fatalf("expected max held %s, got %s", LevelUser, withUser.MaxHeld())
		}
		return withUser.Acquire(LevelMessage, func(withMessage Context) error {
			if !withMessage.Holds(LevelUser) || !withMessage.Holds(LevelMessage) {
				t.Fatalf("expected both User and Message held")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestContext_RejectsOutOfOrderAcquire(t *testing.T) {
	reg := NewRegistry()
	ctx := NewContext(reg)

	err := ctx.Acquire(LevelMessage, func(withMessage Context) error {
		return withMessage.Acquire(LevelUser, func(Context) error { return nil })
	})

	var violation *LockOrderViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected *LockOrderViolation, got %v", err)
	}
	if violation.Attempted != LevelUser || violation.MaxHeld != LevelMessage {
		t.Fatalf("unexpected violation details: %+v", violation)
	}
}

func TestContext_RejectsReacquireSameLevel(t *testing.T) {
	reg := NewRegistry()
	ctx := NewContext(reg)

	err := ctx.Acquire(LevelUser, func(withUser Context) error {
		return withUser.Acquire(LevelUser, func(Context) error { return nil })
	})

	var already *LockAlreadyHeld
	if !errors.As(err, &already) {
		t.Fatalf("expected *LockAlreadyHeld, got %v", err)
	}
}

func TestContext_ReleasesOnPanic(t *testing.T) {
	reg := NewRegistry()
	ctx := NewContext(reg)

	func() {
		defer func() { _ = recover() }()
		_ = ctx.Acquire(LevelUser, func(Context) error {
			panic("boom")
		})
	}()

	// If the lock was not released, this second acquisition deadlocks the
	// test (caught by `go test`'s default timeout).
	done := make(chan struct{})
	go func() {
		_ = ctx.Acquire(LevelUser, func(Context) error { return nil })
		close(done)
	}()
	<-done
}

func TestTypestate_FullDescent(t *testing.T) {
	reg := NewRegistry()
	u := NewUnlocked(reg)

	visited := 0
	err := u.AcquireCacheInit(func(ci HeldCacheInit) error {
		return ci.AcquireWorld(func(w HeldWorld) error {
			return w.AcquireUser(func(usr HeldUser) error {
				return usr.AcquireMessage(func(m HeldMessage) error {
					return m.AcquireBattle(func(b HeldBattle) error {
						return b.AcquireDatabase(func(HeldDatabase) error {
							visited++
							return nil
						})
					})
				})
			})
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if visited != 1 {
		t.Fatalf("expected scope to run exactly once, ran %d times", visited)
	}
}

func TestTypestate_SkippingLevelsIsAllowed(t *testing.T) {
	reg := NewRegistry()
	u := NewUnlocked(reg)

	// User -> Database directly, skipping Message and Battle, is a valid
	// strictly-increasing sequence.
	err := u.AcquireUser(func(usr HeldUser) error {
		return usr.AcquireDatabase(func(HeldDatabase) error { return nil })
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLevel_SharedClassification(t *testing.T) {
	exclusive := []Level{LevelCacheInit, LevelUser, LevelMessage, LevelBattle}
	shared := []Level{LevelWorld, LevelDatabase}

	for _, l := range exclusive {
		if l.Shared() {
			t.Errorf("%s should not support shared holds", l)
		}
	}
	for _, l := range shared {
		if !l.Shared() {
			t.Errorf("%s should support shared holds", l)
		}
	}
}

func TestContext_SharedWorldAllowsConcurrentReaders(t *testing.T) {
	reg := NewRegistry()
	ctx := NewContext(reg)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = ctx.AcquireShared(LevelWorld, func(Context) error {
			close(started)
			<-release
			return nil
		})
		close(done)
	}()

	<-started
	// A second shared reader must be able to proceed concurrently; it does
	// not need `release` to be closed.
	second := make(chan struct{})
	go func() {
		_ = ctx.AcquireShared(LevelWorld, func(Context) error { return nil })
		close(second)
	}()
	<-second

	close(release)
	<-done
}
