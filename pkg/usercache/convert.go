package usercache

import (
	"encoding/json"

	"github.com/markdrei/spacewars-cache/internal/store"
	"github.com/markdrei/spacewars-cache/pkg/model"
)

// userFromRow decodes one users-table row into a model.User, falling back
// to typed zero values for malformed JSON columns per §7's
// MalformedPersistedJson rule: never fail the load, default instead. The
// fallback is not logged.
func userFromRow(row store.Row, inventoryRows, inventoryCols int) *model.User {
	u := &model.User{
		ID:               row.Int64("id"),
		Username:         row.String("username"),
		PasswordHash:     row.String("password_hash"),
		Iron:             row.Int64("iron"),
		XP:               row.Int64("xp"),
		LastUpdated:      row.Int64("last_updated"),
		HullCurrent:      int(row.Int64("hull_current")),
		ArmorCurrent:     int(row.Int64("armor_current")),
		ShieldCurrent:    int(row.Int64("shield_current")),
		DefenseLastRegen: row.Int64("defense_last_regen"),
		InBattle:         row.Bool("in_battle"),
	}
	if shipID, ok := row.NullableInt64("ship_id"); ok {
		u.ShipID = &shipID
	}
	if battleID, ok := row.NullableInt64("current_battle_id"); ok {
		u.CurrentBattleID = &battleID
	}

	u.TechTree = decodeTechTree(row.Bytes("tech_tree"))
	u.ItemCounts = itemCountsFromRow(row)
	u.BuildQueue = decodeBuildQueue(row.Bytes("build_queue"))
	u.BuildStartSec = row.Int64("build_start_sec")

	if raw := row.Bytes("inventory"); len(raw) > 0 && string(raw) != "null" {
		inv := model.DecodeInventory(raw, inventoryRows, inventoryCols)
		u.Inventory = &inv
	}
	return u
}

func decodeTechTree(raw []byte) map[string]int {
	if len(raw) == 0 {
		return map[string]int{}
	}
	var out map[string]int
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]int{}
	}
	return out
}

func encodeTechTree(tree map[string]int) []byte {
	if tree == nil {
		tree = map[string]int{}
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return []byte("{}")
	}
	return b
}

type wireBuildQueueEntry struct {
	ItemKey        model.ItemKey  `json:"itemKey"`
	ItemType       model.ItemType `json:"itemType"`
	CompletionTime int64          `json:"completionTime"`
}

func decodeBuildQueue(raw []byte) []model.BuildQueueEntry {
	if len(raw) == 0 {
		return nil
	}
	var wire []wireBuildQueueEntry
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}
	out := make([]model.BuildQueueEntry, len(wire))
	for i, w := range wire {
		out[i] = model.BuildQueueEntry{ItemKey: w.ItemKey, ItemType: w.ItemType, CompletionTime: w.CompletionTime}
	}
	return out
}

func encodeBuildQueue(entries []model.BuildQueueEntry) []byte {
	wire := make([]wireBuildQueueEntry, len(entries))
	for i, e := range entries {
		wire[i] = wireBuildQueueEntry{ItemKey: e.ItemKey, ItemType: e.ItemType, CompletionTime: e.CompletionTime}
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return []byte("[]")
	}
	return b
}

func itemCountsFromRow(row store.Row) map[model.ItemKey]int {
	counts := make(map[model.ItemKey]int, 10)
	for _, k := range model.Weapons() {
		counts[k] = int(row.Int64(string(k)))
	}
	for _, k := range model.Defenses() {
		counts[k] = int(row.Int64(string(k)))
	}
	return counts
}

// insertParams builds the positional parameter list for StmtUserInsert, in
// the column order internal/store/statements.go declares.
func insertParams(u *model.User) []any {
	return append([]any{
		u.Username, u.PasswordHash, u.Iron, u.XP, u.LastUpdated,
		encodeTechTree(u.TechTree), nullableInt64(u.ShipID),
	}, itemAndDefenseParams(u)...)
}

// updateParams mirrors insertParams but appends the row id for the WHERE
// clause of StmtUserUpdate.
func updateParams(u *model.User) []any {
	return append(insertParams(u), u.ID)
}

func itemAndDefenseParams(u *model.User) []any {
	params := make([]any, 0, 19)
	for _, k := range model.Weapons() {
		params = append(params, u.ItemCounts[k])
	}
	for _, k := range model.Defenses() {
		params = append(params, u.ItemCounts[k])
	}
	params = append(params,
		u.HullCurrent, u.ArmorCurrent, u.ShieldCurrent, u.DefenseLastRegen,
		u.InBattle, nullableInt64(u.CurrentBattleID),
		encodeBuildQueue(u.BuildQueue), u.BuildStartSec, encodeInventory(u.Inventory),
	)
	return params
}

func encodeInventory(inv *model.Inventory) []byte {
	if inv == nil {
		return []byte("null")
	}
	b, err := model.EncodeInventory(*inv)
	if err != nil {
		return []byte("null")
	}
	return b
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
