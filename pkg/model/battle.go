package model

// WeaponCooldowns maps a weapon item key to the unix-ms time it next
// becomes available.
type WeaponCooldowns map[ItemKey]int64

// StatSnapshot captures a combatant's relevant stats at a point in time
// (battle start or end), used to compute deltas for summaries and logs.
type StatSnapshot struct {
	Hull   int
	Armor  int
	Shield int
	Iron   int64
}

// BattleLogEntry is one recorded event within a battle (a shot, a hit, a
// miss, a kill). The exact shape is opaque to the cache layer — it is
// round-tripped through the store as JSON — so it is modeled generically.
type BattleLogEntry struct {
	TimestampMs int64
	AttackerID  int64
	WeaponKey   ItemKey
	Hit         bool
	Damage      int
}

// Battle is one attacker-vs-attackee engagement.
type Battle struct {
	ID         int64
	AttackerID int64
	AttackeeID int64

	BattleStartTimeMs int64
	// BattleEndTimeMs is nil while the battle is still in progress.
	// Membership in BattleCache's activeBattlesByUser index is defined as
	// exactly this field being nil (§3).
	BattleEndTimeMs *int64

	WinnerID *int64
	LoserID  *int64

	AttackerWeaponCooldowns WeaponCooldowns
	AttackeeWeaponCooldowns WeaponCooldowns

	AttackerStartStats StatSnapshot
	AttackeeStartStats StatSnapshot
	AttackerEndStats   *StatSnapshot
	AttackeeEndStats   *StatSnapshot

	Log []BattleLogEntry

	AttackerTotalDamage int64
	AttackeeTotalDamage int64
}

// IsActive reports whether the battle is still in progress.
func (b *Battle) IsActive() bool { return b.BattleEndTimeMs == nil }
