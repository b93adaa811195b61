package battlecache

import (
	"context"
	"testing"

	"github.com/markdrei/spacewars-cache/internal/store/memstore"
	"github.com/markdrei/spacewars-cache/pkg/locks"
	"github.com/markdrei/spacewars-cache/pkg/model"
)

type recordingNotifier struct {
	notified []string
}

func (n *recordingNotifier) NotifyUser(_ context.Context, userID int64, text string) (int64, error) {
	n.notified = append(n.notified, text)
	return -1, nil
}

func newTestCache(t *testing.T) (*Cache, *recordingNotifier) {
	t.Helper()
	reg := locks.NewRegistry()
	gw := memstore.New()
	notifier := &recordingNotifier{}
	return New(reg, gw, notifier, WithAutoPersistence(false)), notifier
}

func TestCreateBattle_RegistersBothParticipantsActive(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	b := &model.Battle{AttackerID: 1, AttackeeID: 2, BattleStartTimeMs: 1000}
	id, err := c.CreateBattle(ctx, b)
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
	if c.activeBattlesByUser[1] != id || c.activeBattlesByUser[2] != id {
		t.Fatalf("expected both participants active, got %+v", c.activeBattlesByUser)
	}
}

func TestUpdateBattle_EndingRemovesFromActiveIndexAndNotifies(t *testing.T) {
	c, notifier := newTestCache(t)
	ctx := context.Background()

	b := &model.Battle{AttackerID: 1, AttackeeID: 2, BattleStartTimeMs: 1000}
	if _, err := c.CreateBattle(ctx, b); err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	end := int64(2000)
	winner, loser := int64(1), int64(2)
	b.BattleEndTimeMs = &end
	b.WinnerID = &winner
	b.LoserID = &loser

	if err := c.UpdateBattle(ctx, b); err != nil {
		t.Fatalf("UpdateBattle: %v", err)
	}

	if _, stillActive := c.activeBattlesByUser[1]; stillActive {
		t.Fatalf("expected attacker removed from active index")
	}
	if _, stillActive := c.activeBattlesByUser[2]; stillActive {
		t.Fatalf("expected attackee removed from active index")
	}
	if len(notifier.notified) != 2 {
		t.Fatalf("expected 2 notifications, got %d: %v", len(notifier.notified), notifier.notified)
	}
}

func TestLoadBattleIfNeeded_CompletedBattleNotRetained(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	b := &model.Battle{AttackerID: 1, AttackeeID: 2, BattleStartTimeMs: 1000}
	id, err := c.CreateBattle(ctx, b)
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}
	end := int64(2000)
	winner, loser := int64(1), int64(2)
	b.BattleEndTimeMs = &end
	b.WinnerID = &winner
	b.LoserID = &loser
	if err := c.UpdateBattle(ctx, b); err != nil {
		t.Fatalf("UpdateBattle: %v", err)
	}
	if err := c.FlushToDatabase(ctx); err != nil {
		t.Fatalf("FlushToDatabase: %v", err)
	}

	// Evict from the in-memory cache to force the store round trip, then
	// confirm the completed battle is returned but not retained.
	delete(c.battles, id)

	loaded, err := c.LoadBattleIfNeeded(ctx, id)
	if err != nil {
		t.Fatalf("LoadBattleIfNeeded: %v", err)
	}
	if loaded.IsActive() {
		t.Fatalf("expected completed battle, got active")
	}
	if _, cached := c.battles[id]; cached {
		t.Fatalf("expected completed battle not retained in cache")
	}
}

func TestFlushToDatabase_ClearsDirtySet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	b := &model.Battle{AttackerID: 3, AttackeeID: 4, BattleStartTimeMs: 500}
	if _, err := c.CreateBattle(ctx, b); err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}
	b.AttackerTotalDamage = 50
	if err := c.UpdateBattle(ctx, b); err != nil {
		t.Fatalf("UpdateBattle: %v", err)
	}
	if len(c.dirty) != 1 {
		t.Fatalf("expected 1 dirty battle, got %d", len(c.dirty))
	}
	if err := c.FlushToDatabase(ctx); err != nil {
		t.Fatalf("FlushToDatabase: %v", err)
	}
	if len(c.dirty) != 0 {
		t.Fatalf("expected dirty set cleared, got %d", len(c.dirty))
	}
}

func TestShutdown_StopsTimerAndFlushes(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	b := &model.Battle{AttackerID: 5, AttackeeID: 6, BattleStartTimeMs: 10}
	if _, err := c.CreateBattle(ctx, b); err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
