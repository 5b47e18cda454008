package source

import (
	"errors"
	"sync"

	"github.com/agentic-research/lens/internal/model"
)

var ErrNotFound = errors.New("index not found")

// node is one row. Its cells follow the column layout of its parent; its own
// children use the layout given by columns.
type node struct {
	id       uint64
	parent   *node
	cells    []map[model.Role]any
	children []*node
	columns  int
}

// MemoryModel is an in-memory hierarchical table. Indexes use the id of the
// parent row as owner, so an index stays valid across insertions elsewhere
// in the tree; only its row/column numbers move.
//
// RoleEdit is an alias of RoleDisplay. New rows inherit the column count of
// their parent for their own children.
type MemoryModel struct {
	model.Notifier

	mu      sync.RWMutex
	root    *node
	nodes   map[uint64]*node
	nextID  uint64
	headers []map[model.Role]any // horizontal headers of the root grid
}

// NewMemoryModel creates an empty model whose top level has the given
// number of columns.
func NewMemoryModel(columns int) *MemoryModel {
	root := &node{id: 1, columns: columns}
	return &MemoryModel{
		root:    root,
		nodes:   map[uint64]*node{root.id: root},
		nextID:  2,
		headers: make([]map[model.Role]any, columns),
	}
}

// lookup resolves a valid index to its row node. Must be called with m.mu held.
func (m *MemoryModel) lookup(idx model.Index) (*node, error) {
	p, ok := m.nodes[uint64(idx.Owner())]
	if !ok || idx.Row() < 0 || idx.Row() >= len(p.children) || idx.Column() < 0 || idx.Column() >= p.columns {
		return nil, ErrNotFound
	}
	return p.children[idx.Row()], nil
}

// container resolves a parent index to the node whose children it addresses.
// Only column 0 of a row has children. Must be called with m.mu held.
func (m *MemoryModel) container(parent model.Index) (*node, error) {
	if !parent.Valid() {
		return m.root, nil
	}
	if parent.Column() != 0 {
		return nil, ErrNotFound
	}
	return m.lookup(parent)
}

func (m *MemoryModel) Index(row, column int, parent model.Index) model.Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.container(parent)
	if err != nil || row < 0 || row >= len(p.children) || column < 0 || column >= p.columns {
		return model.Root
	}
	return model.NewIndex(row, column, model.Owner(p.id))
}

func (m *MemoryModel) Parent(child model.Index) model.Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !child.Valid() {
		return model.Root
	}
	p, ok := m.nodes[uint64(child.Owner())]
	if !ok || p.parent == nil {
		return model.Root
	}
	gp := p.parent
	for row, c := range gp.children {
		if c == p {
			return model.NewIndex(row, 0, model.Owner(gp.id))
		}
	}
	return model.Root
}

func (m *MemoryModel) RowCount(parent model.Index) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.container(parent)
	if err != nil {
		return 0
	}
	return len(p.children)
}

func (m *MemoryModel) ColumnCount(parent model.Index) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.container(parent)
	if err != nil {
		return 0
	}
	return p.columns
}

func canonicalRole(role model.Role) model.Role {
	if role == model.RoleEdit {
		return model.RoleDisplay
	}
	return role
}

func (m *MemoryModel) Data(idx model.Index, role model.Role) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, err := m.lookup(idx)
	if err != nil {
		return nil, false
	}
	cell := n.cells[idx.Column()]
	if cell == nil {
		return nil, false
	}
	v, ok := cell[canonicalRole(role)]
	return v, ok
}

func (m *MemoryModel) SetData(idx model.Index, value any, role model.Role) bool {
	m.mu.Lock()
	n, err := m.lookup(idx)
	if err != nil {
		m.mu.Unlock()
		return false
	}
	col := idx.Column()
	if n.cells[col] == nil {
		n.cells[col] = make(map[model.Role]any)
	}
	n.cells[col][canonicalRole(role)] = value
	parent := m.parentIndexLocked(n.parent)
	m.mu.Unlock()

	m.Notify(model.Mutation{Kind: model.Changed, Parent: parent, Start: idx.Row(), Count: 1})
	return true
}

// parentIndexLocked returns the index addressing p as a parent.
func (m *MemoryModel) parentIndexLocked(p *node) model.Index {
	if p == nil || p.parent == nil {
		return model.Root
	}
	for row, c := range p.parent.children {
		if c == p {
			return model.NewIndex(row, 0, model.Owner(p.parent.id))
		}
	}
	return model.Root
}

func (m *MemoryModel) Flags(idx model.Index) model.Flags {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.lookup(idx); err != nil {
		return model.FlagsNone
	}
	return model.FlagSelectable | model.FlagEditable | model.FlagEnabled
}

func (m *MemoryModel) HeaderData(section int, orientation model.Orientation, role model.Role) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if orientation == model.Vertical {
		if section < 0 || section >= len(m.root.children) {
			return nil, false
		}
		return section + 1, true
	}
	if section < 0 || section >= len(m.headers) || m.headers[section] == nil {
		return nil, false
	}
	v, ok := m.headers[section][canonicalRole(role)]
	return v, ok
}

// SetHeaderData sets a horizontal header label of the top-level grid.
func (m *MemoryModel) SetHeaderData(section int, orientation model.Orientation, value any, role model.Role) bool {
	m.mu.Lock()
	if orientation != model.Horizontal || section < 0 || section >= len(m.headers) {
		m.mu.Unlock()
		return false
	}
	if m.headers[section] == nil {
		m.headers[section] = make(map[model.Role]any)
	}
	m.headers[section][canonicalRole(role)] = value
	m.mu.Unlock()

	m.Notify(model.Mutation{Kind: model.Changed, Orientation: model.Horizontal, Parent: model.Root, Start: section, Count: 1})
	return true
}

func (m *MemoryModel) InsertRows(row, count int, parent model.Index) bool {
	m.mu.Lock()
	p, err := m.container(parent)
	if err != nil || count <= 0 || row < 0 || row > len(p.children) {
		m.mu.Unlock()
		return false
	}
	fresh := make([]*node, count)
	for i := range fresh {
		n := &node{
			id:      m.nextID,
			parent:  p,
			cells:   make([]map[model.Role]any, p.columns),
			columns: p.columns,
		}
		m.nextID++
		m.nodes[n.id] = n
		fresh[i] = n
	}
	children := make([]*node, 0, len(p.children)+count)
	children = append(children, p.children[:row]...)
	children = append(children, fresh...)
	children = append(children, p.children[row:]...)
	p.children = children
	m.mu.Unlock()

	m.Notify(model.Mutation{Kind: model.Shifted, Parent: parent, Start: row, Count: count})
	return true
}

func (m *MemoryModel) RemoveRows(row, count int, parent model.Index) bool {
	m.mu.Lock()
	p, err := m.container(parent)
	if err != nil || count <= 0 || row < 0 || row+count > len(p.children) {
		m.mu.Unlock()
		return false
	}
	for _, gone := range p.children[row : row+count] {
		m.forgetLocked(gone)
	}
	p.children = append(p.children[:row:row], p.children[row+count:]...)
	m.mu.Unlock()

	m.Notify(model.Mutation{Kind: model.Shifted, Parent: parent, Start: row, Count: -count})
	return true
}

// forgetLocked drops n and its subtree from the id table so that indexes
// owned by them stop resolving.
func (m *MemoryModel) forgetLocked(n *node) {
	stack := []*node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		delete(m.nodes, cur.id)
		stack = append(stack, cur.children...)
	}
}

func (m *MemoryModel) InsertColumns(column, count int, parent model.Index) bool {
	m.mu.Lock()
	p, err := m.container(parent)
	if err != nil || count <= 0 || column < 0 || column > p.columns {
		m.mu.Unlock()
		return false
	}
	for _, c := range p.children {
		c.cells = insertCells(c.cells, column, count)
	}
	p.columns += count
	if p == m.root {
		m.headers = insertCells(m.headers, column, count)
	}
	m.mu.Unlock()

	m.Notify(model.Mutation{Kind: model.Shifted, Orientation: model.Horizontal, Parent: parent, Start: column, Count: count})
	return true
}

func (m *MemoryModel) RemoveColumns(column, count int, parent model.Index) bool {
	m.mu.Lock()
	p, err := m.container(parent)
	if err != nil || count <= 0 || column < 0 || column+count > p.columns {
		m.mu.Unlock()
		return false
	}
	for _, c := range p.children {
		c.cells = append(c.cells[:column:column], c.cells[column+count:]...)
	}
	p.columns -= count
	if p == m.root {
		m.headers = append(m.headers[:column:column], m.headers[column+count:]...)
	}
	m.mu.Unlock()

	m.Notify(model.Mutation{Kind: model.Shifted, Orientation: model.Horizontal, Parent: parent, Start: column, Count: -count})
	return true
}

func insertCells(cells []map[model.Role]any, at, count int) []map[model.Role]any {
	out := make([]map[model.Role]any, 0, len(cells)+count)
	out = append(out, cells[:at]...)
	out = append(out, make([]map[model.Role]any, count)...)
	return append(out, cells[at:]...)
}

// Reset removes every row and notifies subscribers with a reset. The column
// layout and headers are kept.
func (m *MemoryModel) Reset() {
	m.mu.Lock()
	for _, c := range m.root.children {
		m.forgetLocked(c)
	}
	m.root.children = nil
	m.mu.Unlock()

	m.Notify(model.Mutation{Kind: model.Reset})
}

var _ model.Model = (*MemoryModel)(nil)
