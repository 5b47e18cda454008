package proxy

import (
	"sort"

	"github.com/agentic-research/lens/internal/model"
)

// Predicate decides whether source row `row` under `parent` is shown.
type Predicate func(src model.Model, row int, parent model.Index) bool

// rowMap is the per-parent state of a Filter: which source rows are shown,
// in source order. It is built lazily and dropped whenever the parent's
// children change.
type rowMap struct {
	built   bool
	rows    []int       // proxy row → source row
	reverse map[int]int // source row → proxy row
}

// Filter shows the source rows accepted by a Predicate. Columns are not
// filtered. Children of a hidden row are unreachable: MapFromSource returns
// model.Root for them as well as for the hidden row itself.
type Filter struct {
	*Base[rowMap]
	accept Predicate
}

// NewFilter creates a filter proxy over src. A nil predicate accepts every
// row.
func NewFilter(src model.Model, accept Predicate, opts ...Option) *Filter {
	p := &Filter{accept: accept}
	p.Base = NewBase[rowMap](p, opts...)
	if src != nil {
		p.SetSourceModel(src)
	}
	return p
}

// SetPredicate replaces the predicate and re-filters everything.
func (p *Filter) SetPredicate(accept Predicate) {
	p.accept = accept
	p.Invalidate()
}

// Invalidate re-runs the predicate for every parent on next access.
// Subscribers receive a reset since arbitrary rows may appear or vanish.
func (p *Filter) Invalidate() {
	p.Registry().Each(func(it *Item[rowMap]) {
		it.Data = rowMap{}
	})
	p.Notify(model.Mutation{Kind: model.Reset})
}

// rows returns the row map of item, building it on first use.
func (p *Filter) rows(item *Item[rowMap]) *rowMap {
	m := &item.Data
	if m.built {
		return m
	}
	src := p.SourceModel()
	parent := item.Source()
	n := src.RowCount(parent)
	m.rows = m.rows[:0]
	m.reverse = make(map[int]int, n)
	for r := 0; r < n; r++ {
		if p.accept == nil || p.accept(src, r, parent) {
			m.reverse[r] = len(m.rows)
			m.rows = append(m.rows, r)
		}
	}
	m.built = true
	return m
}

// MapToSource implements Mapper.
func (p *Filter) MapToSource(proxy model.Index) model.Index {
	src := p.SourceModel()
	if src == nil {
		return model.Root
	}
	item, ok := p.ItemFor(proxy)
	if !ok {
		return model.Root
	}
	m := p.rows(item)
	if proxy.Row() >= len(m.rows) {
		return model.Root
	}
	return src.Index(m.rows[proxy.Row()], proxy.Column(), item.Source())
}

// MapFromSource implements Mapper. Rows rejected by the predicate, and rows
// beneath them, map to model.Root.
func (p *Filter) MapFromSource(source model.Index) model.Index {
	src := p.SourceModel()
	if src == nil || !source.Valid() {
		return model.Root
	}
	parent := src.Parent(source)
	if parent.Valid() && !p.MapFromSource(parent).Valid() {
		return model.Root
	}
	item := p.EnsureItem(parent)
	row, ok := p.rows(item).reverse[source.Row()]
	if !ok {
		return model.Root
	}
	return p.CreateIndex(row, source.Column(), item)
}

func (p *Filter) Index(row, column int, parent model.Index) model.Index {
	srcParent, ok := p.ResolveParent(parent)
	if !ok || row < 0 || column < 0 {
		return model.Root
	}
	item := p.EnsureItem(srcParent)
	if row >= len(p.rows(item).rows) || column >= p.SourceModel().ColumnCount(srcParent) {
		return model.Root
	}
	return p.CreateIndex(row, column, item)
}

func (p *Filter) Parent(child model.Index) model.Index {
	item, ok := p.ItemFor(child)
	if !ok {
		return model.Root
	}
	return p.MapFromSource(item.Source())
}

func (p *Filter) RowCount(parent model.Index) int {
	srcParent, ok := p.ResolveParent(parent)
	if !ok {
		return 0
	}
	return len(p.rows(p.EnsureItem(srcParent)).rows)
}

// HeaderData renumbers vertical headers to proxy rows; horizontal headers
// pass through.
func (p *Filter) HeaderData(section int, orientation model.Orientation, role model.Role) (any, bool) {
	if orientation == model.Vertical {
		if section < 0 || section >= p.RowCount(model.Root) {
			return nil, false
		}
		return section + 1, true
	}
	return p.Base.HeaderData(section, orientation, role)
}

// InsertRows inserts in the source in front of the source row shown at
// proxy row `row`, or after the last source row when appending. Whether the
// new rows are shown is up to the predicate.
func (p *Filter) InsertRows(row, count int, parent model.Index) bool {
	srcParent, ok := p.ResolveParent(parent)
	if !ok || row < 0 {
		return false
	}
	m := p.rows(p.EnsureItem(srcParent))
	switch {
	case row < len(m.rows):
		return p.SourceModel().InsertRows(m.rows[row], count, srcParent)
	case row == len(m.rows):
		return p.SourceModel().InsertRows(p.SourceModel().RowCount(srcParent), count, srcParent)
	}
	return false
}

// RemoveRows removes the source rows shown at proxy rows [row, row+count).
// Hidden source rows in between survive, so one proxy removal may become
// several source removals; they are issued bottom-up so earlier source
// positions stay valid.
func (p *Filter) RemoveRows(row, count int, parent model.Index) bool {
	srcParent, ok := p.ResolveParent(parent)
	if !ok || row < 0 || count <= 0 {
		return false
	}
	m := p.rows(p.EnsureItem(srcParent))
	if row+count > len(m.rows) {
		return false
	}
	srcRows := make([]int, count)
	copy(srcRows, m.rows[row:row+count])

	runs := contiguousRuns(srcRows)
	for i := len(runs) - 1; i >= 0; i-- {
		if !p.SourceModel().RemoveRows(runs[i][0], runs[i][1], srcParent) {
			return false
		}
	}
	return true
}

// contiguousRuns groups sorted rows into (start, length) runs.
func contiguousRuns(rows []int) [][2]int {
	sort.Ints(rows)
	var runs [][2]int
	for _, r := range rows {
		if n := len(runs); n > 0 && runs[n-1][0]+runs[n-1][1] == r {
			runs[n-1][1]++
			continue
		}
		runs = append(runs, [2]int{r, 1})
	}
	return runs
}

// Reconcile implements Reconciler. Any change to the rows of a source parent
// drops that parent's row map; since filtering makes positions unstable,
// row-level changes surface as a layout change of the proxy parent.
func (p *Filter) Reconcile(m model.Mutation, _ []Handle) []model.Mutation {
	switch m.Kind {
	case model.Reset:
		return []model.Mutation{m}
	case model.Shifted:
		if m.Orientation == model.Horizontal {
			return p.Translate(m)
		}
	}

	item, ok := p.Registry().Find(m.Parent)
	if !ok {
		// Nothing was ever fetched under this parent.
		return nil
	}
	item.Data = rowMap{}
	if m.Kind == model.Changed {
		// The changed rows may have flipped visibility.
		p.Registry().EvictChildren(item.Handle())
	}

	parent := model.Root
	if m.Parent.Valid() {
		parent = p.MapFromSource(m.Parent)
		if !parent.Valid() {
			return nil
		}
	}
	return []model.Mutation{{Kind: model.Layout, Parent: parent}}
}

var (
	_ model.Model = (*Filter)(nil)
	_ Mapper      = (*Filter)(nil)
	_ Reconciler  = (*Filter)(nil)
)
