package store

// Statement constants recognized by every Gateway implementation in this
// module (memstore, badgerstore). Centralizing them here keeps the
// dialect-agnostic contract explicit: cache packages issue exactly these
// statements and never build SQL text ad hoc, and a Gateway backed by a
// real relational driver would send this same text straight through to the
// database, unmodified, with params bound positionally.
const (
	StmtUserInsert        = "INSERT INTO users (username, password_hash, iron, xp, last_updated, tech_tree, ship_id, pulse_laser, auto_turret, plasma_lance, gauss_rifle, photon_torpedo, rocket_launcher, ship_hull, kinetic_armor, energy_shield, missile_jammer, hull_current, armor_current, shield_current, defense_last_regen, in_battle, current_battle_id, build_queue, build_start_sec, inventory) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	StmtUserSelectByID    = "SELECT * FROM users WHERE id = ?"
	StmtUserSelectByName  = "SELECT * FROM users WHERE username = ?"
	StmtUserUpdate        = "UPDATE users SET username=?, password_hash=?, iron=?, xp=?, last_updated=?, tech_tree=?, ship_id=?, pulse_laser=?, auto_turret=?, plasma_lance=?, gauss_rifle=?, photon_torpedo=?, rocket_launcher=?, ship_hull=?, kinetic_armor=?, energy_shield=?, missile_jammer=?, hull_current=?, armor_current=?, shield_current=?, defense_last_regen=?, in_battle=?, current_battle_id=?, build_queue=?, build_start_sec=?, inventory=? WHERE id=?"

	StmtSpaceObjectSelectAll = "SELECT * FROM space_objects"
	StmtSpaceObjectInsert    = "INSERT INTO space_objects (type, x, y, speed, angle, last_position_update_ms) VALUES (?, ?, ?, ?, ?, ?)"
	StmtSpaceObjectUpdate    = "UPDATE space_objects SET type=?, x=?, y=?, speed=?, angle=?, last_position_update_ms=? WHERE id=?"
	StmtSpaceObjectDelete    = "DELETE FROM space_objects WHERE id=?"

	StmtMessageInsert           = "INSERT INTO messages (recipient_id, created_at, is_read, message) VALUES (?, ?, ?, ?)"
	StmtMessageSelectByRecipient = "SELECT * FROM messages WHERE recipient_id = ?"
	StmtMessageUpdateReadStatus = "UPDATE messages SET is_read=? WHERE id=?"
	StmtMessageDeleteOldRead    = "DELETE FROM messages WHERE is_read = true AND created_at < ?"

	StmtBattleSelectByID = "SELECT * FROM battles WHERE id = ?"
	StmtBattleInsert     = "INSERT INTO battles (attacker_id, attackee_id, battle_start_time, battle_end_time, winner_id, loser_id, attacker_weapon_cooldowns, attackee_weapon_cooldowns, attacker_start_stats, attackee_start_stats, attacker_end_stats, attackee_end_stats, battle_log, attacker_total_damage, attackee_total_damage) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	StmtBattleUpdate     = "UPDATE battles SET battle_end_time=?, winner_id=?, loser_id=?, attacker_weapon_cooldowns=?, attackee_weapon_cooldowns=?, attacker_end_stats=?, attackee_end_stats=?, battle_log=?, attacker_total_damage=?, attackee_total_damage=? WHERE id=?"
)
