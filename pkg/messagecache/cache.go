// Package messagecache implements the per-recipient message list cache
// (§4.3): load-through reads, an async-insert protocol built around
// optimistic negative temporary ids, dirty-read-status tracking, and
// pattern-based summarization. It is the largest of the four cache
// managers and the only one where a value returned to a caller (the temp
// id) is later mutated in place once the real id is known.
package messagecache

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/markdrei/spacewars-cache/internal/store"
	"github.com/markdrei/spacewars-cache/pkg/locks"
	"github.com/markdrei/spacewars-cache/pkg/model"
)

// Cache is the process-global message cache singleton. It is constructed
// exactly once by the lifecycle orchestrator and threaded down to every
// caller. It has no reset method; tests isolate themselves by constructing
// a fresh Cache with New.
type Cache struct {
	reg *locks.Registry
	gw  store.Gateway
	cfg *config

	// byUser and loaded are both guarded by locks.LevelMessage: every
	// exported method acquires MESSAGE (directly, or as a prefix of
	// MESSAGE→DATABASE) before touching them.
	byUser map[int64][]*model.Message
	loaded map[int64]bool

	dirtyUsers map[int64]struct{}

	nextTempID atomic.Int64 // next value is nextTempID.Add(-1); starts at 0

	pendingGroup errgroup.Group
	loadGroup    singleflight.Group
}

// New constructs a MessageCache bound to reg and gw. No eager load is
// performed (§4.7 step 5: "initialize MessageCache (no eager load)").
func New(reg *locks.Registry, gw store.Gateway, opts ...Option) *Cache {
	return &Cache{
		reg:        reg,
		gw:         gw,
		cfg:        applyOptions(opts),
		byUser:     make(map[int64][]*model.Message),
		loaded:     make(map[int64]bool),
		dirtyUsers: make(map[int64]struct{}),
	}
}

// CreateMessage allocates a new temporary negative id, appends a pending
// message to userID's in-memory list (loading it from the store first if
// absent), and schedules an asynchronous store insert. It returns as soon
// as the in-memory append completes — the caller never waits on the store
// round trip.
func (c *Cache) CreateMessage(ctx context.Context, userID int64, text string) (int64, error) {
	tempID := c.nextTempID.Add(-1)
	now := time.Now().UnixMilli()

	var msg *model.Message
	err := locks.NewUnlocked(c.reg).AcquireMessage(func(h locks.HeldMessage) error {
		if err := c.ensureLoadedLocked(ctx, h, userID); err != nil {
			return err
		}
		msg = &model.Message{
			ID:          tempID,
			RecipientID: userID,
			CreatedAtMs: now,
			IsRead:      false,
			Text:        text,
			IsPending:   true,
		}
		c.byUser[userID] = append(c.byUser[userID], msg)
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.scheduleInsert(userID, msg)
	return tempID, nil
}

// scheduleInsert runs the async-insert protocol in its own goroutine: it
// reacquires MESSAGE (so it serializes against any concurrent
// MarkAllMessagesAsRead), performs the store insert under a nested
// DATABASE hold, and rewrites msg in place once the real id is known. On
// failure the pending record is removed from the cache and the error is
// logged; §7's PendingInsertFailed is never surfaced to the original
// caller, who already received tempID.
func (c *Cache) scheduleInsert(userID int64, msg *model.Message) {
	c.pendingGroup.Go(func() error {
		err := locks.NewUnlocked(c.reg).AcquireMessage(func(h locks.HeldMessage) error {
			var insertedID int64
			dbErr := h.AcquireDatabase(func(locks.HeldDatabase) error {
				res, err := c.gw.Exec(context.Background(), store.StmtMessageInsert,
					msg.RecipientID, msg.CreatedAtMs, msg.IsRead, msg.Text)
				if err != nil {
					return err
				}
				insertedID = res.LastInsertedID
				return nil
			})
			if dbErr != nil {
				c.removeMessageLocked(userID, msg.ID)
				return dbErr
			}

			// The rewrite happens while still holding MESSAGE, so any
			// MarkAllMessagesAsRead that raced with the insert is
			// observed here: if it flipped IsRead to true before this
			// point, that flip survives the rewrite and the user is
			// marked dirty so the read state reaches the store too.
			preservedRead := msg.IsRead
			msg.ID = insertedID
			msg.IsPending = false
			if preservedRead {
				c.dirtyUsers[userID] = struct{}{}
			}
			return nil
		})
		if err != nil {
			c.cfg.logger.Error("messagecache: pending insert failed",
				zap.Int64("user_id", userID), zap.Error(err))
		}
		return err
	})
}

func (c *Cache) removeMessageLocked(userID, tempID int64) {
	list := c.byUser[userID]
	for i, m := range list {
		if m.ID == tempID {
			c.byUser[userID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// WaitForPendingWrites joins every currently scheduled insert future, for
// deterministic shutdown and testing. The returned error, if any, is the
// first insert failure observed; individual failures are already logged
// and their pending records already evicted by scheduleInsert.
func (c *Cache) WaitForPendingWrites(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- c.pendingGroup.Wait()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetMessagesForUser returns a defensive copy of every cached message for
// userID, load-through on miss.
func (c *Cache) GetMessagesForUser(ctx context.Context, userID int64) ([]model.Message, error) {
	var out []model.Message
	err := locks.NewUnlocked(c.reg).AcquireMessage(func(h locks.HeldMessage) error {
		if err := c.ensureLoadedLocked(ctx, h, userID); err != nil {
			return err
		}
		out = copyMessages(c.byUser[userID])
		return nil
	})
	return out, err
}

// GetUnreadMessages returns a defensive copy of every unread (including
// still-pending) message for userID.
func (c *Cache) GetUnreadMessages(ctx context.Context, userID int64) ([]model.Message, error) {
	var out []model.Message
	err := locks.NewUnlocked(c.reg).AcquireMessage(func(h locks.HeldMessage) error {
		if err := c.ensureLoadedLocked(ctx, h, userID); err != nil {
			return err
		}
		for _, m := range c.byUser[userID] {
			if !m.IsRead {
				out = append(out, *m)
			}
		}
		return nil
	})
	return out, err
}

// GetUnreadMessageCount counts unread entries, including pending ones.
func (c *Cache) GetUnreadMessageCount(ctx context.Context, userID int64) (int, error) {
	count := 0
	err := locks.NewUnlocked(c.reg).AcquireMessage(func(h locks.HeldMessage) error {
		if err := c.ensureLoadedLocked(ctx, h, userID); err != nil {
			return err
		}
		for _, m := range c.byUser[userID] {
			if !m.IsRead {
				count++
			}
		}
		return nil
	})
	return count, err
}

// MarkAllMessagesAsRead flips IsRead to true on every unread entry
// (including pending ones), marks the user dirty if anything changed, and
// returns the count flipped. Idempotent: a second call returns 0 and does
// not mark the user dirty.
func (c *Cache) MarkAllMessagesAsRead(ctx context.Context, userID int64) (int, error) {
	flipped := 0
	err := locks.NewUnlocked(c.reg).AcquireMessage(func(h locks.HeldMessage) error {
		if err := c.ensureLoadedLocked(ctx, h, userID); err != nil {
			return err
		}
		for _, m := range c.byUser[userID] {
			if !m.IsRead {
				m.IsRead = true
				flipped++
			}
		}
		if flipped > 0 {
			c.dirtyUsers[userID] = struct{}{}
		}
		return nil
	})
	return flipped, err
}

// FlushToDatabase persists every dirty user's read-status updates for
// messages with a non-negative id; pending messages are skipped — their
// insert will carry the already-flipped state (§4.3).
func (c *Cache) FlushToDatabase(ctx context.Context) error {
	return locks.NewUnlocked(c.reg).AcquireMessage(func(h locks.HeldMessage) error {
		start := time.Now()
		err := h.AcquireDatabase(func(locks.HeldDatabase) error {
			for userID := range c.dirtyUsers {
				for _, m := range c.byUser[userID] {
					if m.ID < 0 {
						continue
					}
					if _, err := c.gw.Exec(ctx, store.StmtMessageUpdateReadStatus, m.IsRead, m.ID); err != nil {
						return err
					}
				}
				delete(c.dirtyUsers, userID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		c.cfg.metrics.IncFlush("message")
		c.cfg.metrics.ObserveFlushDuration("message", time.Since(start))
		c.cfg.metrics.SetDirtyCount("message", len(c.dirtyUsers))
		return nil
	})
}

// DeleteOldReadMessages removes read messages older than olderThanDays
// from the store and clears the in-memory message lists of every user, not
// only the affected ones (forcing a reload on next access), returning the
// number of rows deleted.
func (c *Cache) DeleteOldReadMessages(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays).UnixMilli()
	var affected int64
	err := locks.NewUnlocked(c.reg).AcquireMessage(func(h locks.HeldMessage) error {
		return h.AcquireDatabase(func(locks.HeldDatabase) error {
			res, err := c.gw.Exec(ctx, store.StmtMessageDeleteOldRead, cutoff)
			if err != nil {
				return err
			}
			affected = res.AffectedRows
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	// Clear cache state for every user so the next read loads the
	// post-deletion state through.
	return affected, locks.NewUnlocked(c.reg).AcquireMessage(func(locks.HeldMessage) error {
		c.byUser = make(map[int64][]*model.Message)
		c.loaded = make(map[int64]bool)
		return nil
	})
}

// Shutdown awaits pending writes and performs a final flush. It does not
// stop later CreateMessage calls from scheduling new inserts.
func (c *Cache) Shutdown(ctx context.Context) error {
	if err := c.WaitForPendingWrites(ctx); err != nil {
		return err
	}
	return c.FlushToDatabase(ctx)
}

// Stats reports the number of users with a loaded message list, the number
// currently dirty, and the number of still-pending (unsettled async
// insert) messages across all users, for the CLI inspector's snapshot.
func (c *Cache) Stats(ctx context.Context) (loadedUsers, dirtyUsers, pending int, err error) {
	err = locks.NewUnlocked(c.reg).AcquireMessage(func(locks.HeldMessage) error {
		loadedUsers = len(c.loaded)
		dirtyUsers = len(c.dirtyUsers)
		for _, list := range c.byUser {
			for _, m := range list {
				if m.IsPending {
					pending++
				}
			}
		}
		return nil
	})
	return
}

// ensureLoadedLocked load-throughs userID's message list if it has not
// been loaded yet, querying the store under a nested DATABASE hold.
// Caller must already hold LevelMessage.
func (c *Cache) ensureLoadedLocked(ctx context.Context, h locks.HeldMessage, userID int64) error {
	if c.loaded[userID] {
		c.cfg.metrics.IncHit("message")
		return nil
	}
	c.cfg.metrics.IncMiss("message")

	// singleflight dedupes concurrent misses for the same user into one
	// store round trip, the same load-through dedup role
	// golang.org/x/sync/singleflight plays in the teacher's
	// pkg/loader.go.
	key := fmt.Sprintf("%d", userID)
	v, err, _ := c.loadGroup.Do(key, func() (any, error) {
		var rows []store.Row
		err := h.AcquireDatabase(func(locks.HeldDatabase) error {
			var qerr error
			rows, qerr = c.gw.Query(ctx, store.StmtMessageSelectByRecipient, userID)
			return qerr
		})
		if err != nil {
			return nil, &store.Failure{Op: "load messages", Err: err}
		}
		list := make([]*model.Message, 0, len(rows))
		for _, row := range rows {
			list = append(list, &model.Message{
				ID:          row.Int64("id"),
				RecipientID: row.Int64("recipient_id"),
				CreatedAtMs: row.Int64("created_at"),
				IsRead:      row.Bool("is_read"),
				Text:        row.String("message"),
				IsPending:   false,
			})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].CreatedAtMs < list[j].CreatedAtMs })
		return list, nil
	})
	if err != nil {
		return err
	}
	c.byUser[userID] = v.([]*model.Message)
	c.loaded[userID] = true
	return nil
}

func copyMessages(list []*model.Message) []model.Message {
	out := make([]model.Message, len(list))
	for i, m := range list {
		out[i] = *m
	}
	return out
}
