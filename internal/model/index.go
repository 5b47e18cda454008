package model

import "fmt"

// Owner is the opaque parent context of an Index. Its meaning is private to
// the model that produced the Index: source models store a node identity,
// proxies store a registry handle.
type Owner uint64

// Index addresses one cell of a hierarchical table: the (row, column) pair
// indexes into the children of the parent identified by owner.
// Two indexes are equal iff row, column and owner all match.
type Index struct {
	row    int
	column int
	owner  Owner
}

// Root is the invalid index. It doubles as the parent of top-level rows.
var Root = Index{row: -1, column: -1}

// NewIndex builds an Index. Models call this when handing out addresses;
// consumers should obtain indexes from Model.Index instead.
func NewIndex(row, column int, owner Owner) Index {
	return Index{row: row, column: column, owner: owner}
}

func (i Index) Row() int     { return i.row }
func (i Index) Column() int  { return i.column }
func (i Index) Owner() Owner { return i.owner }

// Valid reports whether the index addresses a cell (as opposed to Root).
func (i Index) Valid() bool {
	return i.row >= 0 && i.column >= 0
}

// Sibling returns the index at (row, column) under the same parent.
func (i Index) Sibling(row, column int) Index {
	return Index{row: row, column: column, owner: i.owner}
}

func (i Index) String() string {
	if !i.Valid() {
		return "root"
	}
	return fmt.Sprintf("(%d,%d)@%d", i.row, i.column, i.owner)
}
