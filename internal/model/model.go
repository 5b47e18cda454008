package model

// Role selects which facet of a cell Data/SetData address.
type Role int

const (
	RoleDisplay Role = iota
	RoleEdit
	RoleToolTip
	RoleSort
	// RoleUser is the first role available for application-defined data.
	RoleUser Role = 256
)

// Flags is the capability set of a cell.
type Flags uint32

const (
	FlagSelectable Flags = 1 << iota
	FlagEditable
	FlagEnabled
	FlagNeverHasChildren

	FlagsNone Flags = 0
)

func (f Flags) Has(flag Flags) bool { return f&flag == flag }

// Orientation distinguishes row operations from column operations.
type Orientation uint8

const (
	Vertical   Orientation = iota // rows
	Horizontal                    // columns
)

func (o Orientation) String() string {
	if o == Horizontal {
		return "column"
	}
	return "row"
}

// Model is a hierarchical table. Source models and proxies both implement it,
// so proxies can be stacked on top of each other.
//
// Unresolvable indexes are never an error: reads report absence, writes
// report false.
type Model interface {
	Index(row, column int, parent Index) Index
	Parent(child Index) Index
	RowCount(parent Index) int
	ColumnCount(parent Index) int

	Data(idx Index, role Role) (any, bool)
	SetData(idx Index, value any, role Role) bool
	Flags(idx Index) Flags
	HeaderData(section int, orientation Orientation, role Role) (any, bool)

	InsertRows(row, count int, parent Index) bool
	RemoveRows(row, count int, parent Index) bool
	InsertColumns(column, count int, parent Index) bool
	RemoveColumns(column, count int, parent Index) bool

	// Subscribe registers l for mutation notifications. The returned func
	// removes the subscription.
	Subscribe(l Listener) (cancel func())
}

// HasChildren reports whether parent has at least one row.
func HasChildren(m Model, parent Index) bool {
	if parent.Valid() && m.Flags(parent).Has(FlagNeverHasChildren) {
		return false
	}
	return m.RowCount(parent) > 0
}
