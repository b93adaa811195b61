// Package bench provides reproducible micro-benchmarks for the cache
// hierarchy. Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// Every benchmark boots a full lifecycle.Orchestrator over memstore (no
// disk, no network) so the numbers measure lock acquisition and
// in-memory bookkeeping cost, not a backing store's latency.
package bench

import (
	"context"
	"fmt"
	"testing"

	"github.com/markdrei/spacewars-cache/internal/store/memstore"
	"github.com/markdrei/spacewars-cache/pkg/battlecache"
	"github.com/markdrei/spacewars-cache/pkg/lifecycle"
	"github.com/markdrei/spacewars-cache/pkg/model"
	"github.com/markdrei/spacewars-cache/pkg/usercache"
)

func newBenchOrchestrator(b *testing.B) *lifecycle.Orchestrator {
	b.Helper()
	gw := memstore.New()
	orch, err := lifecycle.Start(context.Background(), gw, lifecycle.Options{
		UserOptions:   []usercache.Option{usercache.WithAutoPersistence(false)},
		BattleOptions: []battlecache.Option{battlecache.WithAutoPersistence(false)},
	})
	if err != nil {
		b.Fatalf("lifecycle.Start: %v", err)
	}
	return orch
}

// BenchmarkUserCache_GetByID_Hit measures the cost of a cache hit: load
// once, then repeatedly read the same user under the exclusive USER lock.
func BenchmarkUserCache_GetByID_Hit(b *testing.B) {
	ctx := context.Background()
	orch := newBenchOrchestrator(b)
	id, err := orch.Users.CreateUser(ctx, &model.User{Username: "bench", PasswordHash: "x"})
	if err != nil {
		b.Fatalf("CreateUser: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := orch.Users.GetUserByID(ctx, id); err != nil {
			b.Fatalf("GetUserByID: %v", err)
		}
	}
}

// BenchmarkUserCache_GetByID_Parallel measures USER-level lock contention
// under concurrent reads of the same user from many goroutines.
func BenchmarkUserCache_GetByID_Parallel(b *testing.B) {
	ctx := context.Background()
	orch := newBenchOrchestrator(b)
	id, err := orch.Users.CreateUser(ctx, &model.User{Username: "bench", PasswordHash: "x"})
	if err != nil {
		b.Fatalf("CreateUser: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := orch.Users.GetUserByID(ctx, id); err != nil {
				b.Fatalf("GetUserByID: %v", err)
			}
		}
	})
}

// BenchmarkMessageCache_CreateMessage measures the synchronous half of the
// async-insert protocol: temp-id allocation and the in-memory append,
// without waiting on the background store round trip.
func BenchmarkMessageCache_CreateMessage(b *testing.B) {
	ctx := context.Background()
	orch := newBenchOrchestrator(b)
	id, err := orch.Users.CreateUser(ctx, &model.User{Username: "bench", PasswordHash: "x"})
	if err != nil {
		b.Fatalf("CreateUser: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := orch.Messages.CreateMessage(ctx, id, "hello"); err != nil {
			b.Fatalf("CreateMessage: %v", err)
		}
	}
	b.StopTimer()
	if err := orch.Messages.WaitForPendingWrites(ctx); err != nil {
		b.Fatalf("WaitForPendingWrites: %v", err)
	}
}

// BenchmarkMessageCache_CreateMessage_ManyUsers spreads inserts across 64
// distinct recipients. Each recipient's list is loaded through from the
// store on its first insert only, and every insert still takes the single
// MESSAGE lock.
func BenchmarkMessageCache_CreateMessage_ManyUsers(b *testing.B) {
	ctx := context.Background()
	orch := newBenchOrchestrator(b)

	const userCount = 64
	ids := make([]int64, userCount)
	for i := range ids {
		id, err := orch.Users.CreateUser(ctx, &model.User{
			Username:     fmt.Sprintf("bench-%d", i),
			PasswordHash: "x",
		})
		if err != nil {
			b.Fatalf("CreateUser: %v", err)
		}
		ids[i] = id
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := orch.Messages.CreateMessage(ctx, ids[i%userCount], "hello"); err != nil {
			b.Fatalf("CreateMessage: %v", err)
		}
	}
	b.StopTimer()
	if err := orch.Messages.WaitForPendingWrites(ctx); err != nil {
		b.Fatalf("WaitForPendingWrites: %v", err)
	}
}

// BenchmarkWorldCache_TeleportShip measures exclusive-WORLD mutation cost
// on a world already populated with a modest number of objects.
func BenchmarkWorldCache_TeleportShip(b *testing.B) {
	ctx := context.Background()
	orch := newBenchOrchestrator(b)

	const objectCount = 256
	ids := make([]int64, objectCount)
	for i := range ids {
		id, err := orch.World.InsertObject(ctx, model.SpaceObject{
			Type: model.ObjectAsteroid,
			X:    float64(i), Y: float64(i),
		})
		if err != nil {
			b.Fatalf("InsertObject: %v", err)
		}
		ids[i] = id
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := ids[i%objectCount]
		if err := orch.World.TeleportShip(ctx, id, float64(i), float64(i)); err != nil {
			b.Fatalf("TeleportShip: %v", err)
		}
	}
}

// BenchmarkUserCache_FlushAllToDatabase measures the cascaded flush cost
// (users, then world/messages/battles concurrently) with 32 dirty users;
// the world, message, and battle caches have nothing dirty to write.
func BenchmarkUserCache_FlushAllToDatabase(b *testing.B) {
	ctx := context.Background()

	const userCount = 32
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		orch := newBenchOrchestrator(b)
		for j := 0; j < userCount; j++ {
			user := &model.User{
				Username:     fmt.Sprintf("bench-%d-%d", i, j),
				PasswordHash: "x",
			}
			if _, err := orch.Users.CreateUser(ctx, user); err != nil {
				b.Fatalf("CreateUser: %v", err)
			}
			user.Iron += 10
			if err := orch.Users.UpdateUser(ctx, user); err != nil {
				b.Fatalf("UpdateUser: %v", err)
			}
		}
		b.StartTimer()

		if err := orch.Users.FlushAllToDatabase(ctx); err != nil {
			b.Fatalf("FlushAllToDatabase: %v", err)
		}
	}
}
