package model

import "encoding/json"

// DefaultInventoryRows and DefaultInventoryCols are the spec's default grid
// dimensions (§6), configurable rather than literal at the call sites that
// matter (UserCache's decode path).
const (
	DefaultInventoryRows = 10
	DefaultInventoryCols = 10
)

// StatBonus is one entry in a commander's stat list.
type StatBonus struct {
	StatType     string  `json:"statType"`
	BonusPercent float64 `json:"bonusPercent"`
}

// Commander is the payload of an occupied inventory cell.
type Commander struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Stats []StatBonus `json:"stats"`
}

// InventoryCell is either empty (Commander == nil) or holds a commander.
type InventoryCell struct {
	Type string     `json:"type,omitempty"`
	Data *Commander `json:"data,omitempty"`
}

// IsEmpty reports whether the cell holds no commander.
func (c InventoryCell) IsEmpty() bool { return c.Data == nil }

// Inventory is a fixed-dimension grid of cells.
type Inventory struct {
	Rows, Cols int
	Cells      [][]InventoryCell
}

// NewEmptyInventory returns an all-null grid of the given dimensions.
func NewEmptyInventory(rows, cols int) Inventory {
	cells := make([][]InventoryCell, rows)
	for r := range cells {
		cells[r] = make([]InventoryCell, cols)
	}
	return Inventory{Rows: rows, Cols: cols, Cells: cells}
}

// wireInventory is the on-disk JSON shape: a rows x cols nested array
// (one inner array per row) of nullable cells, matching the column
// described in §6.
type wireInventory struct {
	Rows  int                `json:"rows"`
	Cols  int                `json:"cols"`
	Cells [][]*InventoryCell `json:"cells"`
}

// DecodeInventory parses the inventory JSON column. Malformed JSON, a
// missing/zero row or column count, or a cell grid whose dimensions don't
// match rows x cols all fall back to an all-null grid of the requested
// default dimensions — this fallback is an invariant (§6, §7
// MalformedPersistedJSON), never an error returned to the caller.
func DecodeInventory(raw []byte, defaultRows, defaultCols int) Inventory {
	if len(raw) == 0 {
		return NewEmptyInventory(defaultRows, defaultCols)
	}

	var wire wireInventory
	if err := json.Unmarshal(raw, &wire); err != nil {
		return NewEmptyInventory(defaultRows, defaultCols)
	}
	if wire.Rows <= 0 || wire.Cols <= 0 {
		return NewEmptyInventory(defaultRows, defaultCols)
	}
	if len(wire.Cells) != wire.Rows {
		return NewEmptyInventory(defaultRows, defaultCols)
	}
	for _, row := range wire.Cells {
		if len(row) != wire.Cols {
			return NewEmptyInventory(defaultRows, defaultCols)
		}
	}

	inv := NewEmptyInventory(wire.Rows, wire.Cols)
	for r, row := range wire.Cells {
		for c, cell := range row {
			if cell != nil {
				inv.Cells[r][c] = *cell
			}
		}
	}
	return inv
}

// EncodeInventory serializes the grid back to the wire shape.
func EncodeInventory(inv Inventory) ([]byte, error) {
	wire := wireInventory{
		Rows:  inv.Rows,
		Cols:  inv.Cols,
		Cells: make([][]*InventoryCell, inv.Rows),
	}
	for r, row := range inv.Cells {
		wireRow := make([]*InventoryCell, len(row))
		for c, cell := range row {
			if !cell.IsEmpty() {
				cellCopy := cell
				wireRow[c] = &cellCopy
			}
		}
		wire.Cells[r] = wireRow
	}
	return json.Marshal(wire)
}
