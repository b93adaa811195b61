package model

// Tick-based derivation rates. Named rather than inlined so UpdateStats'
// behaviour can be reasoned about and tuned in one place; the spec leaves
// their exact magnitude unspecified (§4.5, "iron accrual and defense
// regen") beyond requiring that they exist and that the defense pools stay
// within [0, 100*count].
const (
	// IronPerSecond is the linear iron accrual rate per elapsed second.
	IronPerSecond = 1
	// DefenseRegenPerSecond is the per-second regeneration rate applied to
	// each of hull, armor, and shield while below their max.
	DefenseRegenPerSecond = 2
	// DefensePoolPerItem is how many points of max pool each owned unit of
	// a defense item contributes (ship_hull, kinetic_armor, energy_shield).
	DefensePoolPerItem = 100
)

// User is the cached representation of a player account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string

	Iron int64
	XP   int64

	// LastUpdated is the wall-clock time (unix ms) UpdateStats last ran
	// iron accrual from.
	LastUpdated int64

	// TechTree maps a tech key to its current integer level.
	TechTree map[string]int

	// ItemCounts holds per-item owned counts for all ten known weapons and
	// defenses (see Weapons/Defenses).
	ItemCounts map[ItemKey]int

	HullCurrent   int
	ArmorCurrent  int
	ShieldCurrent int
	// DefenseLastRegen is the wall-clock time (unix ms) defense regen was
	// last applied from.
	DefenseLastRegen int64

	InBattle        bool
	CurrentBattleID *int64

	BuildQueue []BuildQueueEntry
	// BuildStartSec is the wall-clock time (unix seconds) the queue's
	// earliest still-pending entry started building.
	BuildStartSec int64

	ShipID *int64

	// Inventory is nil for a user whose inventory column is NULL; a
	// non-nil Inventory always has the fixed dimensions it was decoded
	// with (see model.DecodeInventory's fallback invariant).
	Inventory *Inventory
}

// HullMax, ArmorMax, and ShieldMax derive the current pool ceilings from
// owned item counts, per §3's invariant
// "0 ≤ hullCurrent ≤ 100·ship_hull_count" (and analogously for the other
// two pools).
func (u *User) HullMax() int   { return u.ItemCounts[ItemShipHull] * DefensePoolPerItem }
func (u *User) ArmorMax() int  { return u.ItemCounts[ItemKineticArmor] * DefensePoolPerItem }
func (u *User) ShieldMax() int { return u.ItemCounts[ItemEnergyShield] * DefensePoolPerItem }

// clampDefensePools enforces §3's invariant after any mutation that could
// have pushed a pool out of range (item count change, regen tick).
func (u *User) clampDefensePools() {
	if max := u.HullMax(); u.HullCurrent > max {
		u.HullCurrent = max
	}
	if max := u.ArmorMax(); u.ArmorCurrent > max {
		u.ArmorCurrent = max
	}
	if max := u.ShieldMax(); u.ShieldCurrent > max {
		u.ShieldCurrent = max
	}
	if u.HullCurrent < 0 {
		u.HullCurrent = 0
	}
	if u.ArmorCurrent < 0 {
		u.ArmorCurrent = 0
	}
	if u.ShieldCurrent < 0 {
		u.ShieldCurrent = 0
	}
}

// UpdateStats applies every tick-based derivation UserCache.UpdateUser owes
// a freshly-read or freshly-mutated User before handing it back to a
// caller: iron accrual since LastUpdated, defense regeneration since
// DefenseLastRegen, and draining any build-queue entries whose
// CompletionTime has passed. now is a unix-ms timestamp supplied by the
// caller so the method stays deterministic and testable.
func (u *User) UpdateStats(nowMs int64) {
	u.accrueIron(nowMs)
	u.regenDefenses(nowMs)
	u.drainBuildQueue(nowMs)
	u.clampDefensePools()
}

func (u *User) accrueIron(nowMs int64) {
	if u.LastUpdated <= 0 {
		u.LastUpdated = nowMs
		return
	}
	elapsedSec := (nowMs - u.LastUpdated) / 1000
	if elapsedSec <= 0 {
		return
	}
	u.Iron += elapsedSec * IronPerSecond
	u.LastUpdated += elapsedSec * 1000
}

func (u *User) regenDefenses(nowMs int64) {
	if u.DefenseLastRegen <= 0 {
		u.DefenseLastRegen = nowMs
		return
	}
	elapsedSec := (nowMs - u.DefenseLastRegen) / 1000
	if elapsedSec <= 0 {
		return
	}
	regen := int(elapsedSec * DefenseRegenPerSecond)
	if regen > 0 {
		u.HullCurrent += regen
		u.ArmorCurrent += regen
		u.ShieldCurrent += regen
		u.clampDefensePools()
	}
	u.DefenseLastRegen += elapsedSec * 1000
}

// drainBuildQueue applies every queue entry whose CompletionTime has
// passed: a weapon or defense entry bumps the corresponding ItemCounts
// entry by one. Entries are applied in queue order and removed once
// applied; entries still pending remain in order.
func (u *User) drainBuildQueue(nowMs int64) {
	if len(u.BuildQueue) == 0 {
		return
	}
	remaining := u.BuildQueue[:0]
	if u.ItemCounts == nil {
		u.ItemCounts = make(map[ItemKey]int)
	}
	for _, entry := range u.BuildQueue {
		if entry.CompletionTime > nowMs {
			remaining = append(remaining, entry)
			continue
		}
		switch entry.ItemType {
		case ItemTypeWeapon, ItemTypeDefense:
			u.ItemCounts[entry.ItemKey]++
		}
	}
	u.BuildQueue = remaining
}
