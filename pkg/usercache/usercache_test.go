package usercache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/markdrei/spacewars-cache/internal/store/memstore"
	"github.com/markdrei/spacewars-cache/pkg/locks"
	"github.com/markdrei/spacewars-cache/pkg/model"
)

// nopFlusher's calls counter is atomic because FlushAllToDatabase fans its
// World/Message/Battle flushes out concurrently via errgroup.
type nopFlusher struct{ calls atomic.Int64 }

func (f *nopFlusher) FlushToDatabase(context.Context) error {
	f.calls.Add(1)
	return nil
}

type nopMessageStore struct {
	nopFlusher
	nextID atomic.Int64
}

func (m *nopMessageStore) CreateMessage(context.Context, int64, string) (int64, error) {
	return m.nextID.Add(-1), nil
}

func newTestCache(t *testing.T) (*Cache, *nopFlusher, *nopMessageStore, *nopFlusher) {
	t.Helper()
	reg := locks.NewRegistry()
	gw := memstore.New()
	world, messages, battles := &nopFlusher{}, &nopMessageStore{}, &nopFlusher{}
	c := New(reg, gw, world, messages, WithAutoPersistence(false))
	c.SetBattleCache(battles)
	return c, world, messages, battles
}

func TestCreateUser_AssignsIDAndCachesIt(t *testing.T) {
	c, _, _, _ := newTestCache(t)
	ctx := context.Background()

	u := &model.User{Username: "alice", PasswordHash: "pw"}
	id, err := c.CreateUser(ctx, u)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}

	got, err := c.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.ID != 1 {
		t.Fatalf("expected cached id 1, got %d", got.ID)
	}
}

func TestGetUserByID_LoadThroughThenCacheHit(t *testing.T) {
	c, _, _, _ := newTestCache(t)
	ctx := context.Background()

	id, err := c.CreateUser(ctx, &model.User{Username: "bob", PasswordHash: "pw"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u1, err := c.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID (load-through): %v", err)
	}
	u2, err := c.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID (cache hit): %v", err)
	}
	if u1.ID != u2.ID || u1.Username != u2.Username {
		t.Fatalf("expected consistent reads, got %+v vs %+v", u1, u2)
	}
}

func TestUpdateUser_MarksDirtyAndClearsOnFlush(t *testing.T) {
	c, world, messages, battles := newTestCache(t)
	ctx := context.Background()

	id, err := c.CreateUser(ctx, &model.User{Username: "carol", PasswordHash: "pw"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := c.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	u.Iron = 500
	if err := c.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	if len(c.dirty) != 1 {
		t.Fatalf("expected 1 dirty user, got %d", len(c.dirty))
	}

	if err := c.FlushAllToDatabase(ctx); err != nil {
		t.Fatalf("FlushAllToDatabase: %v", err)
	}
	if len(c.dirty) != 0 {
		t.Fatalf("expected dirty set cleared after flush, got %d", len(c.dirty))
	}
	if world.calls.Load() != 1 || messages.calls.Load() != 1 || battles.calls.Load() != 1 {
		t.Fatalf("expected cascade to all three, got world=%d messages=%d battles=%d",
			world.calls.Load(), messages.calls.Load(), battles.calls.Load())
	}
}

func TestShutdown_StopsTimerAndFlushesOnce(t *testing.T) {
	c, world, messages, battles := newTestCache(t)
	ctx := context.Background()

	id, err := c.CreateUser(ctx, &model.User{Username: "dave", PasswordHash: "pw"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := c.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if err := c.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if len(c.dirty) != 0 {
		t.Fatalf("expected dirty set cleared by shutdown flush, got %d", len(c.dirty))
	}
	if world.calls.Load() != 1 || messages.calls.Load() != 1 || battles.calls.Load() != 1 {
		t.Fatalf("expected exactly one cascaded flush, got world=%d messages=%d battles=%d",
			world.calls.Load(), messages.calls.Load(), battles.calls.Load())
	}
}

func TestGetUserByUsername_UnknownReturnsError(t *testing.T) {
	c, _, _, _ := newTestCache(t)
	if _, err := c.GetUserByUsername(context.Background(), "nobody"); err == nil {
		t.Fatalf("expected error for unknown username")
	}
}
