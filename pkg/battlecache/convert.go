package battlecache

import (
	"encoding/json"

	"github.com/markdrei/spacewars-cache/internal/store"
	"github.com/markdrei/spacewars-cache/pkg/model"
)

func battleFromRow(row store.Row) *model.Battle {
	b := &model.Battle{
		ID:                row.Int64("id"),
		AttackerID:        row.Int64("attacker_id"),
		AttackeeID:        row.Int64("attackee_id"),
		BattleStartTimeMs: row.Int64("battle_start_time"),
	}
	if end, ok := row.NullableInt64("battle_end_time"); ok {
		b.BattleEndTimeMs = &end
	}
	if winner, ok := row.NullableInt64("winner_id"); ok {
		b.WinnerID = &winner
	}
	if loser, ok := row.NullableInt64("loser_id"); ok {
		b.LoserID = &loser
	}
	b.AttackerWeaponCooldowns = decodeCooldowns(row.Bytes("attacker_weapon_cooldowns"))
	b.AttackeeWeaponCooldowns = decodeCooldowns(row.Bytes("attackee_weapon_cooldowns"))
	b.AttackerStartStats = decodeStats(row.Bytes("attacker_start_stats"))
	b.AttackeeStartStats = decodeStats(row.Bytes("attackee_start_stats"))
	if raw := row.Bytes("attacker_end_stats"); len(raw) > 0 && string(raw) != "null" {
		s := decodeStats(raw)
		b.AttackerEndStats = &s
	}
	if raw := row.Bytes("attackee_end_stats"); len(raw) > 0 && string(raw) != "null" {
		s := decodeStats(raw)
		b.AttackeeEndStats = &s
	}
	b.Log = decodeLog(row.Bytes("battle_log"))
	b.AttackerTotalDamage = row.Int64("attacker_total_damage")
	b.AttackeeTotalDamage = row.Int64("attackee_total_damage")
	return b
}

func decodeCooldowns(raw []byte) model.WeaponCooldowns {
	if len(raw) == 0 {
		return model.WeaponCooldowns{}
	}
	var out model.WeaponCooldowns
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return model.WeaponCooldowns{}
	}
	return out
}

func encodeCooldowns(c model.WeaponCooldowns) []byte {
	if c == nil {
		c = model.WeaponCooldowns{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func decodeStats(raw []byte) model.StatSnapshot {
	var out model.StatSnapshot
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func encodeStats(s model.StatSnapshot) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func encodeOptionalStats(s *model.StatSnapshot) []byte {
	if s == nil {
		return []byte("null")
	}
	return encodeStats(*s)
}

func decodeLog(raw []byte) []model.BattleLogEntry {
	if len(raw) == 0 {
		return nil
	}
	var out []model.BattleLogEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func encodeLog(log []model.BattleLogEntry) []byte {
	b, err := json.Marshal(log)
	if err != nil {
		return []byte("[]")
	}
	return b
}

func insertParams(b *model.Battle) []any {
	return []any{
		b.AttackerID, b.AttackeeID, b.BattleStartTimeMs, nullableInt64(b.BattleEndTimeMs),
		nullableInt64(b.WinnerID), nullableInt64(b.LoserID),
		encodeCooldowns(b.AttackerWeaponCooldowns), encodeCooldowns(b.AttackeeWeaponCooldowns),
		encodeStats(b.AttackerStartStats), encodeStats(b.AttackeeStartStats),
		encodeOptionalStats(b.AttackerEndStats), encodeOptionalStats(b.AttackeeEndStats),
		encodeLog(b.Log), b.AttackerTotalDamage, b.AttackeeTotalDamage,
	}
}

func updateParams(b *model.Battle) []any {
	return []any{
		nullableInt64(b.BattleEndTimeMs), nullableInt64(b.WinnerID), nullableInt64(b.LoserID),
		encodeCooldowns(b.AttackerWeaponCooldowns), encodeCooldowns(b.AttackeeWeaponCooldowns),
		encodeOptionalStats(b.AttackerEndStats), encodeOptionalStats(b.AttackeeEndStats),
		encodeLog(b.Log), b.AttackerTotalDamage, b.AttackeeTotalDamage, b.ID,
	}
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
