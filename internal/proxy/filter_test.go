package proxy

import (
	"testing"

	"github.com/agentic-research/lens/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openOnly(t *testing.T) Predicate {
	t.Helper()
	accept, err := JSONPath("$[?(@.status == 'open')]")
	require.NoError(t, err)
	return accept
}

func names(t *testing.T, m model.Model, parent model.Index) []any {
	t.Helper()
	var out []any
	for r := 0; r < m.RowCount(parent); r++ {
		out = append(out, display(t, m, m.Index(r, 0, parent)))
	}
	return out
}

func TestFilterHidesRows(t *testing.T) {
	src := newTracker(t)
	p := NewFilter(src, openOnly(t))

	assert.Equal(t, []any{"alpha", "gamma"}, names(t, p, model.Root))
	alpha := p.Index(0, 0, model.Root)
	assert.Equal(t, []any{"a2"}, names(t, p, alpha))
	assert.Equal(t, model.Root, p.Index(2, 0, model.Root))

	// Hidden rows have no proxy address.
	assert.Equal(t, model.Root, p.MapFromSource(src.Index(1, 0, model.Root)))
	gamma := p.MapFromSource(src.Index(2, 1, model.Root))
	assert.Equal(t, p.Index(1, 1, model.Root), gamma)
	assert.Equal(t, src.Index(2, 1, model.Root), p.MapToSource(gamma))
	assert.Equal(t, alpha, p.Parent(p.Index(0, 0, alpha)))
}

func TestFilterHidesDescendantsOfHiddenRows(t *testing.T) {
	src := newTracker(t)
	accept := func(src model.Model, row int, parent model.Index) bool {
		return parent.Valid() || row != 0
	}
	p := NewFilter(src, accept)
	a1 := src.Index(0, 0, src.Index(0, 0, model.Root))
	assert.Equal(t, model.Root, p.MapFromSource(a1))
}

func TestFilterNilPredicateShowsEverything(t *testing.T) {
	p := NewFilter(newTracker(t), nil)
	assert.Equal(t, []any{"alpha", "beta", "gamma"}, names(t, p, model.Root))
}

func TestFilterHeaders(t *testing.T) {
	p := NewFilter(newTracker(t), openOnly(t))

	h, ok := p.HeaderData(1, model.Vertical, model.RoleDisplay)
	require.True(t, ok)
	assert.Equal(t, 2, h)
	_, ok = p.HeaderData(2, model.Vertical, model.RoleDisplay)
	assert.False(t, ok)

	h, ok = p.HeaderData(0, model.Horizontal, model.RoleDisplay)
	require.True(t, ok)
	assert.Equal(t, "name", h)
}

func TestFilterRemoveRowsSkipsHidden(t *testing.T) {
	src := newTracker(t)
	p := NewFilter(src, openOnly(t))

	require.True(t, p.RemoveRows(0, 2, model.Root))
	assert.Equal(t, []any{"beta"}, names(t, src, model.Root))
	assert.Equal(t, 0, p.RowCount(model.Root))

	assert.False(t, p.RemoveRows(0, 1, model.Root))
}

func TestFilterInsertRows(t *testing.T) {
	src := newTracker(t)
	p := NewFilter(src, openOnly(t))

	// In front of gamma, which is source row 2.
	require.True(t, p.InsertRows(1, 1, model.Root))
	assert.Equal(t, []any{"alpha", "beta", nil, "gamma"}, names(t, src, model.Root))
	assert.Equal(t, 2, p.RowCount(model.Root), "the new empty row is filtered out")

	require.True(t, p.InsertRows(2, 1, model.Root))
	assert.Equal(t, 5, src.RowCount(model.Root))
	assert.False(t, p.InsertRows(4, 1, model.Root))
}

func TestFilterReactsToEdits(t *testing.T) {
	src := newTracker(t)
	p := NewFilter(src, openOnly(t))
	require.Equal(t, 2, p.RowCount(model.Root))
	rec := record(p)

	require.True(t, src.SetData(src.Index(1, 1, model.Root), "open", model.RoleDisplay))
	assert.Equal(t, []any{"alpha", "beta", "gamma"}, names(t, p, model.Root))
	require.NotEmpty(t, rec.got)
	assert.Equal(t, model.Mutation{Kind: model.Layout, Parent: model.Root}, rec.got[0])

	// Editing through the proxy can hide the edited row.
	require.True(t, p.SetData(p.Index(0, 1, model.Root), "closed", model.RoleDisplay))
	assert.Equal(t, []any{"beta", "gamma"}, names(t, p, model.Root))
}

func TestFilterDropsMutationsUnderHiddenRows(t *testing.T) {
	src := newTracker(t)
	p := NewFilter(src, openOnly(t))
	p.Index(0, 0, model.Root)

	beta := src.Index(1, 0, model.Root)
	p.EnsureItem(beta) // hidden, but known to the registry
	rec := record(p)

	require.True(t, src.InsertRows(0, 1, beta))
	assert.Empty(t, rec.got)
}

func TestFilterSetPredicate(t *testing.T) {
	p := NewFilter(newTracker(t), openOnly(t))
	rec := record(p)

	p.SetPredicate(nil)
	assert.Equal(t, 3, p.RowCount(model.Root))
	require.Len(t, rec.got, 1)
	assert.Equal(t, model.Reset, rec.got[0].Kind)
}

func TestFilterColumnShiftPassesThrough(t *testing.T) {
	src := newTracker(t)
	p := NewFilter(src, openOnly(t))
	p.RowCount(model.Root)
	rec := record(p)

	require.True(t, src.InsertColumns(2, 1, model.Root))
	require.Len(t, rec.got, 1)
	assert.Equal(t, model.Horizontal, rec.got[0].Orientation)
	assert.Equal(t, model.Shifted, rec.got[0].Kind)
	assert.Equal(t, 3, p.ColumnCount(model.Root))
}

func TestFilterOverIdentity(t *testing.T) {
	src := newTracker(t)
	id := NewIdentity(src)
	p := NewFilter(id, openOnly(t))

	assert.Equal(t, []any{"alpha", "gamma"}, names(t, p, model.Root))
	alpha := p.Index(0, 0, model.Root)
	assert.Equal(t, []any{"a2"}, names(t, p, alpha))

	rec := record(p)
	require.True(t, src.SetData(src.Index(1, 1, model.Root), "open", model.RoleDisplay))
	require.NotEmpty(t, rec.got)
	assert.Equal(t, model.Layout, rec.got[0].Kind)
	assert.Equal(t, []any{"alpha", "beta", "gamma"}, names(t, p, model.Root))

	// Edits travel down both layers.
	require.True(t, p.RemoveRows(1, 1, model.Root))
	assert.Equal(t, []any{"alpha", "gamma"}, names(t, src, model.Root))
}

func TestFilterUnresolvableIndexes(t *testing.T) {
	src := newTracker(t)
	p := NewFilter(src, openOnly(t))
	alpha := p.Index(0, 0, model.Root)
	p.Index(0, 0, alpha)
	before := anchors(p.Registry())
	require.Len(t, before, 2)

	alphaItem, ok := p.ItemFor(p.Index(0, 0, alpha))
	require.True(t, ok)
	pastEnd := model.NewIndex(5, 0, model.Owner(alphaItem.Handle()))

	for _, bogus := range []model.Index{model.NewIndex(0, 0, 9999), model.Root, pastEnd} {
		_, ok := p.Data(bogus, model.RoleDisplay)
		assert.False(t, ok, "data %s", bogus)
		assert.False(t, p.SetData(bogus, "x", model.RoleDisplay), "set %s", bogus)
		assert.Equal(t, model.FlagsNone, p.Flags(bogus))
	}

	assert.Equal(t, before, anchors(p.Registry()))
	assert.Equal(t, []any{"a2"}, names(t, p, alpha))
	assert.Equal(t, "closed", display(t, src, src.Index(1, 1, model.Root)))
}

func TestContiguousRuns(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 1}, {2, 3}, {7, 1}}, contiguousRuns([]int{3, 0, 2, 4, 7}))
	assert.Nil(t, contiguousRuns(nil))
}
