// Package memstore is a pure in-memory store.Gateway used by unit tests.
// It has no third-party dependency and no durability: it exists purely to
// let pkg/usercache, pkg/worldcache, pkg/messagecache, and pkg/battlecache
// be exercised against a store.Gateway without a real database, mirroring
// how the teacher repo's bench package fabricates a cache with
// newTestCache() instead of wiring a production backend.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/markdrei/spacewars-cache/internal/store"
)

// Store is a single-process, mutex-guarded relational-store stand-in.
type Store struct {
	mu sync.Mutex

	users      map[int64]store.Row
	usersByName map[string]int64
	nextUserID int64

	spaceObjects map[int64]store.Row
	nextSOID     int64

	messages      map[int64]store.Row
	nextMessageID int64

	battles      map[int64]store.Row
	nextBattleID int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:        make(map[int64]store.Row),
		usersByName:  make(map[string]int64),
		spaceObjects: make(map[int64]store.Row),
		messages:     make(map[int64]store.Row),
		battles:      make(map[int64]store.Row),
	}
}

// Query implements store.Gateway.
func (s *Store) Query(_ context.Context, sql string, params ...any) ([]store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch sql {
	case store.StmtUserSelectByID:
		id := params[0].(int64)
		if row, ok := s.users[id]; ok {
			return []store.Row{cloneRow(row)}, nil
		}
		return nil, nil
	case store.StmtUserSelectByName:
		name := params[0].(string)
		if id, ok := s.usersByName[name]; ok {
			return []store.Row{cloneRow(s.users[id])}, nil
		}
		return nil, nil
	case store.StmtSpaceObjectSelectAll:
		out := make([]store.Row, 0, len(s.spaceObjects))
		for _, row := range s.spaceObjects {
			out = append(out, cloneRow(row))
		}
		return out, nil
	case store.StmtMessageSelectByRecipient:
		recipient := params[0].(int64)
		out := make([]store.Row, 0)
		for _, row := range s.messages {
			if row.Int64("recipient_id") == recipient {
				out = append(out, cloneRow(row))
			}
		}
		return out, nil
	case store.StmtBattleSelectByID:
		id := params[0].(int64)
		if row, ok := s.battles[id]; ok {
			return []store.Row{cloneRow(row)}, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("memstore: unrecognized query: %s", sql)
	}
}

// Exec implements store.Gateway.
func (s *Store) Exec(_ context.Context, sql string, params ...any) (store.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch sql {
	case store.StmtUserInsert:
		return s.insertUser(params)
	case store.StmtUserUpdate:
		return s.updateUser(params)
	case store.StmtSpaceObjectInsert:
		return s.insertSpaceObject(params)
	case store.StmtSpaceObjectUpdate:
		return s.updateSpaceObject(params)
	case store.StmtSpaceObjectDelete:
		return s.deleteSpaceObject(params)
	case store.StmtMessageInsert:
		return s.insertMessage(params)
	case store.StmtMessageUpdateReadStatus:
		return s.updateMessageReadStatus(params)
	case store.StmtMessageDeleteOldRead:
		return s.deleteOldRead(params)
	case store.StmtBattleInsert:
		return s.insertBattle(params)
	case store.StmtBattleUpdate:
		return s.updateBattle(params)
	default:
		return store.Result{}, fmt.Errorf("memstore: unrecognized exec: %s", sql)
	}
}

// WithTransaction runs scope against this same Store. memstore has no
// partial-failure semantics to roll back (every Exec above is already an
// atomic, in-memory map mutation under s.mu), so the "transaction" is a
// convenience wrapper rather than real isolation.
func (s *Store) WithTransaction(ctx context.Context, scope func(ctx context.Context, tx store.Gateway) error) error {
	return scope(ctx, s)
}

func cloneRow(r store.Row) store.Row {
	out := make(store.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (s *Store) insertUser(p []any) (store.Result, error) {
	username := p[0].(string)
	if _, taken := s.usersByName[username]; taken {
		return store.Result{}, &store.UniqueConstraintError{Constraint: "users.username"}
	}
	s.nextUserID++
	id := s.nextUserID
	row := store.Row{
		"id": id, "username": username, "password_hash": p[1], "iron": p[2], "xp": p[3],
		"last_updated": p[4], "tech_tree": p[5], "ship_id": p[6],
		"pulse_laser": p[7], "auto_turret": p[8], "plasma_lance": p[9], "gauss_rifle": p[10],
		"photon_torpedo": p[11], "rocket_launcher": p[12], "ship_hull": p[13], "kinetic_armor": p[14],
		"energy_shield": p[15], "missile_jammer": p[16], "hull_current": p[17], "armor_current": p[18],
		"shield_current": p[19], "defense_last_regen": p[20], "in_battle": p[21], "current_battle_id": p[22],
		"build_queue": p[23], "build_start_sec": p[24], "inventory": p[25],
	}
	s.users[id] = row
	s.usersByName[username] = id
	return store.Result{AffectedRows: 1, LastInsertedID: id}, nil
}

func (s *Store) updateUser(p []any) (store.Result, error) {
	id := p[len(p)-1].(int64)
	existing, ok := s.users[id]
	if !ok {
		return store.Result{}, fmt.Errorf("memstore: update user: no such id %d", id)
	}
	newName := p[0].(string)
	if newName != existing["username"].(string) {
		if _, taken := s.usersByName[newName]; taken {
			return store.Result{}, &store.UniqueConstraintError{Constraint: "users.username"}
		}
		delete(s.usersByName, existing["username"].(string))
		s.usersByName[newName] = id
	}
	row := store.Row{
		"id": id, "username": p[0], "password_hash": p[1], "iron": p[2], "xp": p[3],
		"last_updated": p[4], "tech_tree": p[5], "ship_id": p[6],
		"pulse_laser": p[7], "auto_turret": p[8], "plasma_lance": p[9], "gauss_rifle": p[10],
		"photon_torpedo": p[11], "rocket_launcher": p[12], "ship_hull": p[13], "kinetic_armor": p[14],
		"energy_shield": p[15], "missile_jammer": p[16], "hull_current": p[17], "armor_current": p[18],
		"shield_current": p[19], "defense_last_regen": p[20], "in_battle": p[21], "current_battle_id": p[22],
		"build_queue": p[23], "build_start_sec": p[24], "inventory": p[25],
	}
	s.users[id] = row
	return store.Result{AffectedRows: 1}, nil
}

func (s *Store) insertSpaceObject(p []any) (store.Result, error) {
	s.nextSOID++
	id := s.nextSOID
	row := store.Row{
		"id": id, "type": p[0], "x": p[1], "y": p[2], "speed": p[3], "angle": p[4],
		"last_position_update_ms": p[5],
	}
	s.spaceObjects[id] = row
	return store.Result{AffectedRows: 1, LastInsertedID: id}, nil
}

func (s *Store) updateSpaceObject(p []any) (store.Result, error) {
	id := p[len(p)-1].(int64)
	if _, ok := s.spaceObjects[id]; !ok {
		return store.Result{}, fmt.Errorf("memstore: update space object: no such id %d", id)
	}
	row := store.Row{
		"id": id, "type": p[0], "x": p[1], "y": p[2], "speed": p[3], "angle": p[4],
		"last_position_update_ms": p[5],
	}
	s.spaceObjects[id] = row
	return store.Result{AffectedRows: 1}, nil
}

func (s *Store) deleteSpaceObject(p []any) (store.Result, error) {
	id := p[0].(int64)
	if _, ok := s.spaceObjects[id]; !ok {
		return store.Result{}, nil
	}
	delete(s.spaceObjects, id)
	return store.Result{AffectedRows: 1}, nil
}

func (s *Store) insertMessage(p []any) (store.Result, error) {
	s.nextMessageID++
	id := s.nextMessageID
	row := store.Row{
		"id": id, "recipient_id": p[0], "created_at": p[1], "is_read": p[2], "message": p[3],
	}
	s.messages[id] = row
	return store.Result{AffectedRows: 1, LastInsertedID: id}, nil
}

func (s *Store) updateMessageReadStatus(p []any) (store.Result, error) {
	isRead := p[0]
	id := p[1].(int64)
	row, ok := s.messages[id]
	if !ok {
		return store.Result{}, nil
	}
	row["is_read"] = isRead
	return store.Result{AffectedRows: 1}, nil
}

func (s *Store) deleteOldRead(p []any) (store.Result, error) {
	cutoff := p[0].(int64)
	var n int64
	for id, row := range s.messages {
		if row.Bool("is_read") && row.Int64("created_at") < cutoff {
			delete(s.messages, id)
			n++
		}
	}
	return store.Result{AffectedRows: n}, nil
}

func (s *Store) insertBattle(p []any) (store.Result, error) {
	s.nextBattleID++
	id := s.nextBattleID
	row := store.Row{
		"id": id, "attacker_id": p[0], "attackee_id": p[1], "battle_start_time": p[2],
		"battle_end_time": p[3], "winner_id": p[4], "loser_id": p[5],
		"attacker_weapon_cooldowns": p[6], "attackee_weapon_cooldowns": p[7],
		"attacker_start_stats": p[8], "attackee_start_stats": p[9],
		"attacker_end_stats": p[10], "attackee_end_stats": p[11],
		"battle_log": p[12], "attacker_total_damage": p[13], "attackee_total_damage": p[14],
	}
	s.battles[id] = row
	return store.Result{AffectedRows: 1, LastInsertedID: id}, nil
}

func (s *Store) updateBattle(p []any) (store.Result, error) {
	id := p[len(p)-1].(int64)
	row, ok := s.battles[id]
	if !ok {
		return store.Result{}, fmt.Errorf("memstore: update battle: no such id %d", id)
	}
	row["battle_end_time"] = p[0]
	row["winner_id"] = p[1]
	row["loser_id"] = p[2]
	row["attacker_weapon_cooldowns"] = p[3]
	row["attackee_weapon_cooldowns"] = p[4]
	row["attacker_end_stats"] = p[5]
	row["attackee_end_stats"] = p[6]
	row["battle_log"] = p[7]
	row["attacker_total_damage"] = p[8]
	row["attackee_total_damage"] = p[9]
	return store.Result{AffectedRows: 1}, nil
}
