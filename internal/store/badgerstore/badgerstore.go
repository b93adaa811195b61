// Package badgerstore is a durable, embeddable store.Gateway backed by
// github.com/dgraph-io/badger/v4. It exists for local/dev wiring and for
// the CLI inspector (cmd/spacewars-cache-inspect) that don't have a real
// SQL database on hand: it speaks the same three-operation Gateway
// contract the lifecycle orchestrator and all four caches already program
// against, so the whole stack can be exercised end-to-end without an
// external dependency. It is not a substitute for the production
// relational store (§1 keeps that out of scope) — it is the teacher
// repo's headline dependency (github.com/dgraph-io/badger/v4) repurposed
// to give the store seam a real, durable backing.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/markdrei/spacewars-cache/internal/store"
)

// Store is a badger-backed store.Gateway.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens (creating if absent) a badger database at dir.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying badger handles.
func (s *Store) Close() error {
	return s.db.Close()
}

func rowKey(table string, id int64) []byte {
	return []byte(fmt.Sprintf("%s:%020d", table, id))
}

func nameIndexKey(table, name string) []byte {
	return []byte(fmt.Sprintf("%s_by_name:%s", table, name))
}

func (s *Store) nextID(table string) (int64, error) {
	seq, err := s.db.GetSequence([]byte("seq:"+table), 100)
	if err != nil {
		return 0, err
	}
	defer seq.Release()
	return int64(mustNext(seq)), nil
}

func mustNext(seq *badger.Sequence) uint64 {
	n, err := seq.Next()
	if err != nil {
		panic(err) // badger.Sequence.Next only fails on a closed/corrupt db
	}
	return n + 1 // badger sequences start at 0; row ids must be strictly positive
}

func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf))
}

// Query implements store.Gateway.
func (s *Store) Query(_ context.Context, sql string, params ...any) ([]store.Row, error) {
	switch sql {
	case store.StmtUserSelectByID:
		return s.getRow("user", params[0].(int64))
	case store.StmtUserSelectByName:
		return s.getRowByName("user", params[0].(string))
	case store.StmtSpaceObjectSelectAll:
		return s.scanAll("spaceobject")
	case store.StmtMessageSelectByRecipient:
		want := params[0].(int64)
		return s.scanFiltered("message", func(r store.Row) bool {
			return r.Int64("recipient_id") == want
		})
	case store.StmtBattleSelectByID:
		return s.getRow("battle", params[0].(int64))
	default:
		return nil, fmt.Errorf("badgerstore: unrecognized query: %s", sql)
	}
}

func (s *Store) getRow(table string, id int64) ([]store.Row, error) {
	var out []store.Row
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rowKey(table, id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var row store.Row
			if err := json.Unmarshal(val, &row); err != nil {
				return err
			}
			out = []store.Row{row}
			return nil
		})
	})
	if err != nil {
		return nil, &store.Failure{Op: "get " + table, Err: err}
	}
	return out, nil
}

func (s *Store) getRowByName(table, name string) ([]store.Row, error) {
	var id int64
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nameIndexKey(table, name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = decodeID(val)
			found = true
			return nil
		})
	})
	if err != nil {
		return nil, &store.Failure{Op: "get " + table + " by name", Err: err}
	}
	if !found {
		return nil, nil
	}
	return s.getRow(table, id)
}

func (s *Store) scanAll(table string) ([]store.Row, error) {
	return s.scanFiltered(table, func(store.Row) bool { return true })
}

func (s *Store) scanFiltered(table string, keep func(store.Row) bool) ([]store.Row, error) {
	var out []store.Row
	prefix := []byte(table + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var row store.Row
				if err := json.Unmarshal(val, &row); err != nil {
					return err
				}
				if keep(row) {
					out = append(out, row)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &store.Failure{Op: "scan " + table, Err: err}
	}
	return out, nil
}

// Exec implements store.Gateway.
func (s *Store) Exec(_ context.Context, sql string, params ...any) (store.Result, error) {
	switch sql {
	case store.StmtUserInsert:
		return s.insertNamed("user", "username", userColumns, params)
	case store.StmtUserUpdate:
		return s.updateNamed("user", "username", userColumns, params)
	case store.StmtSpaceObjectInsert:
		return s.insert("spaceobject", spaceObjectColumns, params)
	case store.StmtSpaceObjectUpdate:
		return s.update("spaceobject", spaceObjectColumns, params)
	case store.StmtSpaceObjectDelete:
		return s.delete("spaceobject", params[0].(int64))
	case store.StmtMessageInsert:
		return s.insert("message", messageColumns, params)
	case store.StmtMessageUpdateReadStatus:
		return s.patchField("message", "is_read", params[0], params[1].(int64))
	case store.StmtMessageDeleteOldRead:
		return s.deleteOldReadMessages(params[0].(int64))
	case store.StmtBattleInsert:
		return s.insert("battle", battleColumns, params)
	case store.StmtBattleUpdate:
		return s.updatePartial("battle", battleUpdateColumns, params)
	default:
		return store.Result{}, fmt.Errorf("badgerstore: unrecognized exec: %s", sql)
	}
}

var userColumns = []string{
	"username", "password_hash", "iron", "xp", "last_updated", "tech_tree", "ship_id",
	"pulse_laser", "auto_turret", "plasma_lance", "gauss_rifle", "photon_torpedo", "rocket_launcher",
	"ship_hull", "kinetic_armor", "energy_shield", "missile_jammer",
	"hull_current", "armor_current", "shield_current", "defense_last_regen",
	"in_battle", "current_battle_id", "build_queue", "build_start_sec", "inventory",
}

var spaceObjectColumns = []string{"type", "x", "y", "speed", "angle", "last_position_update_ms"}
var messageColumns = []string{"recipient_id", "created_at", "is_read", "message"}
var battleColumns = []string{
	"attacker_id", "attackee_id", "battle_start_time", "battle_end_time", "winner_id", "loser_id",
	"attacker_weapon_cooldowns", "attackee_weapon_cooldowns", "attacker_start_stats", "attackee_start_stats",
	"attacker_end_stats", "attackee_end_stats", "battle_log", "attacker_total_damage", "attackee_total_damage",
}
var battleUpdateColumns = []string{
	"battle_end_time", "winner_id", "loser_id", "attacker_weapon_cooldowns", "attackee_weapon_cooldowns",
	"attacker_end_stats", "attackee_end_stats", "battle_log", "attacker_total_damage", "attackee_total_damage",
}

func (s *Store) insert(table string, columns []string, params []any) (store.Result, error) {
	id, err := s.nextID(table)
	if err != nil {
		return store.Result{}, &store.Failure{Op: "insert " + table, Err: err}
	}
	row := store.Row{"id": id}
	for i, col := range columns {
		row[col] = params[i]
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return store.Result{}, &store.Failure{Op: "insert " + table, Err: err}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rowKey(table, id), raw)
	})
	if err != nil {
		return store.Result{}, &store.Failure{Op: "insert " + table, Err: err}
	}
	return store.Result{AffectedRows: 1, LastInsertedID: id}, nil
}

func (s *Store) insertNamed(table, nameCol string, columns []string, params []any) (store.Result, error) {
	name := params[0].(string)
	var exists bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(nameIndexKey(table, name))
		if err == nil {
			exists = true
			return nil
		}
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return store.Result{}, &store.Failure{Op: "insert " + table, Err: err}
	}
	if exists {
		return store.Result{}, &store.UniqueConstraintError{Constraint: table + "." + nameCol}
	}

	id, err := s.nextID(table)
	if err != nil {
		return store.Result{}, &store.Failure{Op: "insert " + table, Err: err}
	}
	row := store.Row{"id": id}
	for i, col := range columns {
		row[col] = params[i]
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return store.Result{}, &store.Failure{Op: "insert " + table, Err: err}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(rowKey(table, id), raw); err != nil {
			return err
		}
		return txn.Set(nameIndexKey(table, name), encodeID(id))
	})
	if err != nil {
		return store.Result{}, &store.Failure{Op: "insert " + table, Err: err}
	}
	return store.Result{AffectedRows: 1, LastInsertedID: id}, nil
}

func (s *Store) update(table string, columns []string, params []any) (store.Result, error) {
	id := params[len(params)-1].(int64)
	row := store.Row{"id": id}
	for i, col := range columns {
		row[col] = params[i]
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return store.Result{}, &store.Failure{Op: "update " + table, Err: err}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rowKey(table, id), raw)
	})
	if err != nil {
		return store.Result{}, &store.Failure{Op: "update " + table, Err: err}
	}
	return store.Result{AffectedRows: 1}, nil
}

func (s *Store) updateNamed(table, nameCol string, columns []string, params []any) (store.Result, error) {
	id := params[len(params)-1].(int64)
	newName := params[0].(string)

	existing, err := s.getRow(table, id)
	if err != nil {
		return store.Result{}, err
	}
	if len(existing) == 0 {
		return store.Result{}, &store.Failure{Op: "update " + table, Err: fmt.Errorf("no such id %d", id)}
	}
	oldName, _ := existing[0][nameCol].(string)

	row := store.Row{"id": id}
	for i, col := range columns {
		row[col] = params[i]
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return store.Result{}, &store.Failure{Op: "update " + table, Err: err}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(rowKey(table, id), raw); err != nil {
			return err
		}
		if newName != oldName {
			if oldName != "" {
				if err := txn.Delete(nameIndexKey(table, oldName)); err != nil {
					return err
				}
			}
			return txn.Set(nameIndexKey(table, newName), encodeID(id))
		}
		return nil
	})
	if err != nil {
		return store.Result{}, &store.Failure{Op: "update " + table, Err: err}
	}
	return store.Result{AffectedRows: 1}, nil
}

func (s *Store) updatePartial(table string, columns []string, params []any) (store.Result, error) {
	id := params[len(params)-1].(int64)
	rows, err := s.getRow(table, id)
	if err != nil {
		return store.Result{}, err
	}
	if len(rows) == 0 {
		return store.Result{}, &store.Failure{Op: "update " + table, Err: fmt.Errorf("no such id %d", id)}
	}
	row := rows[0]
	for i, col := range columns {
		row[col] = params[i]
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return store.Result{}, &store.Failure{Op: "update " + table, Err: err}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rowKey(table, id), raw)
	})
	if err != nil {
		return store.Result{}, &store.Failure{Op: "update " + table, Err: err}
	}
	return store.Result{AffectedRows: 1}, nil
}

func (s *Store) patchField(table, field string, value any, id int64) (store.Result, error) {
	rows, err := s.getRow(table, id)
	if err != nil {
		return store.Result{}, err
	}
	if len(rows) == 0 {
		return store.Result{}, nil
	}
	row := rows[0]
	row[field] = value
	raw, err := json.Marshal(row)
	if err != nil {
		return store.Result{}, &store.Failure{Op: "patch " + table, Err: err}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rowKey(table, id), raw)
	})
	if err != nil {
		return store.Result{}, &store.Failure{Op: "patch " + table, Err: err}
	}
	return store.Result{AffectedRows: 1}, nil
}

func (s *Store) deleteOldReadMessages(cutoff int64) (store.Result, error) {
	rows, err := s.scanFiltered("message", func(r store.Row) bool {
		return r.Bool("is_read") && r.Int64("created_at") < cutoff
	})
	if err != nil {
		return store.Result{}, err
	}
	var n int64
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, row := range rows {
			if err := txn.Delete(rowKey("message", row.Int64("id"))); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return store.Result{}, &store.Failure{Op: "delete old read messages", Err: err}
	}
	return store.Result{AffectedRows: n}, nil
}

func (s *Store) delete(table string, id int64) (store.Result, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(rowKey(table, id))
	})
	if err != nil {
		return store.Result{}, &store.Failure{Op: "delete " + table, Err: err}
	}
	return store.Result{AffectedRows: 1}, nil
}

// WithTransaction runs scope against this same Store. Each Exec above
// already commits via its own badger transaction; badgerstore does not
// offer multi-statement atomicity across a WithTransaction scope (badger's
// Txn type is not exposed through the Gateway interface), so scope's
// statements commit independently as they would against a connection pool
// without explicit BEGIN/COMMIT. This mirrors the teacher's info-level-
// logging discipline: a structured log line marks every scope.
func (s *Store) WithTransaction(ctx context.Context, scope func(ctx context.Context, tx store.Gateway) error) error {
	s.logger.Debug("badgerstore: running transaction scope")
	return scope(ctx, s)
}
