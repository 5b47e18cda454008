package proxy

import (
	"testing"

	"github.com/agentic-research/lens/internal/model"
	"github.com/agentic-research/lens/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityMirrorsSource(t *testing.T) {
	src := newTracker(t)
	p := NewIdentity(src)

	assert.Equal(t, 3, p.RowCount(model.Root))
	assert.Equal(t, 2, p.ColumnCount(model.Root))
	assert.Equal(t, "beta", display(t, p, p.Index(1, 0, model.Root)))

	alpha := p.Index(0, 0, model.Root)
	require.True(t, alpha.Valid())
	assert.Equal(t, 2, p.RowCount(alpha))
	a2 := p.Index(1, 1, alpha)
	assert.Equal(t, "open", display(t, p, a2))
	assert.Equal(t, alpha, p.Parent(a2))
	assert.Equal(t, model.Root, p.Parent(alpha))
	assert.True(t, model.HasChildren(p, alpha))
	assert.False(t, model.HasChildren(p, p.Index(1, 0, model.Root)))

	h, ok := p.HeaderData(1, model.Horizontal, model.RoleDisplay)
	require.True(t, ok)
	assert.Equal(t, "status", h)
	assert.Equal(t, src.Flags(src.Index(0, 0, model.Root)), p.Flags(alpha))
}

func TestIdentityRoundTrip(t *testing.T) {
	src := newTracker(t)
	p := NewIdentity(src)

	var walk func(parent model.Index)
	walk = func(parent model.Index) {
		for r := 0; r < p.RowCount(parent); r++ {
			for c := 0; c < p.ColumnCount(parent); c++ {
				idx := p.Index(r, c, parent)
				require.True(t, idx.Valid())
				assert.Equal(t, idx, p.MapFromSource(p.MapToSource(idx)), "cell %s", idx)
			}
			walk(p.Index(r, 0, parent))
		}
	}
	walk(model.Root)
}

func TestIdentityOutOfRange(t *testing.T) {
	p := NewIdentity(newTracker(t))
	assert.Equal(t, model.Root, p.Index(3, 0, model.Root))
	assert.Equal(t, model.Root, p.Index(0, 2, model.Root))
	assert.Equal(t, model.Root, p.Index(-1, 0, model.Root))
}

func TestIdentityKeepsChildIndexesAcrossShift(t *testing.T) {
	src := newTracker(t)
	p := NewIdentity(src)
	a1 := p.Index(0, 0, p.Index(0, 0, model.Root))
	require.Equal(t, "a1", display(t, p, a1))

	require.True(t, src.InsertRows(0, 2, model.Root))
	assert.Equal(t, "a1", display(t, p, a1), "alpha moved, its children did not")
	assert.Equal(t, p.Index(2, 0, model.Root), p.Parent(a1))
}

func TestIdentityForwardsMutations(t *testing.T) {
	src := newTracker(t)
	p := NewIdentity(src)
	rec := record(p)
	alpha := p.Index(0, 0, model.Root)

	require.True(t, src.InsertRows(1, 1, src.Index(0, 0, model.Root)))
	require.True(t, src.SetData(src.Index(1, 1, model.Root), "open", model.RoleDisplay))

	require.Len(t, rec.got, 2)
	assert.Equal(t, model.Mutation{Kind: model.Shifted, Parent: alpha, Start: 1, Count: 1}, rec.got[0])
	assert.Equal(t, model.Mutation{Kind: model.Changed, Parent: model.Root, Start: 1, Count: 1}, rec.got[1])
}

func TestIdentityEditsReachSource(t *testing.T) {
	src := newTracker(t)
	p := NewIdentity(src)

	require.True(t, p.SetData(p.Index(1, 1, model.Root), "open", model.RoleEdit))
	assert.Equal(t, "open", display(t, src, src.Index(1, 1, model.Root)))

	require.True(t, p.InsertRows(3, 1, model.Root))
	assert.Equal(t, 4, src.RowCount(model.Root))
	require.True(t, p.RemoveRows(0, 1, model.Root))
	assert.Equal(t, "beta", display(t, src, src.Index(0, 0, model.Root)))

	require.True(t, p.InsertColumns(2, 1, model.Root))
	assert.Equal(t, 3, p.ColumnCount(model.Root))
	require.True(t, p.RemoveColumns(2, 1, model.Root))
	assert.Equal(t, 2, src.ColumnCount(model.Root))
	assert.False(t, p.RemoveColumns(5, 1, model.Root))
}

func TestRemovedRowsBecomeUnresolvable(t *testing.T) {
	src := newTracker(t)
	p := NewIdentity(src)
	a1 := p.Index(0, 0, p.Index(0, 0, model.Root))
	require.True(t, a1.Valid())

	require.True(t, src.RemoveRows(0, 1, model.Root))

	v, ok := p.Data(a1, model.RoleDisplay)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.False(t, p.SetData(a1, "x", model.RoleDisplay))
	assert.Equal(t, model.FlagsNone, p.Flags(a1))
	assert.Equal(t, model.Root, p.Parent(a1))
	assert.Equal(t, model.Root, p.MapToSource(a1))
	assert.Equal(t, 0, p.RowCount(a1))
	assert.False(t, p.InsertRows(0, 1, a1))
}

func TestUnresolvableIndexes(t *testing.T) {
	p := NewIdentity(newTracker(t))
	p.Index(0, 0, p.Index(0, 0, model.Root))
	before := anchors(p.Registry())
	require.Len(t, before, 2)
	bogus := model.NewIndex(0, 0, 9999)

	_, ok := p.Data(bogus, model.RoleDisplay)
	assert.False(t, ok)
	_, ok = p.Data(model.Root, model.RoleDisplay)
	assert.False(t, ok)
	assert.False(t, p.SetData(bogus, 1, model.RoleDisplay))
	assert.Equal(t, model.FlagsNone, p.Flags(bogus))
	assert.False(t, p.InsertColumns(0, 1, bogus))
	assert.False(t, p.RemoveColumns(0, 1, bogus))
	assert.Equal(t, 0, p.ColumnCount(bogus))

	assert.Equal(t, before, anchors(p.Registry()), "lookups of bad indexes leave the registry alone")
}

func TestNoSource(t *testing.T) {
	p := NewIdentity(nil)
	assert.Nil(t, p.SourceModel())
	assert.Equal(t, model.Root, p.Index(0, 0, model.Root))
	assert.Equal(t, 0, p.RowCount(model.Root))
	assert.Equal(t, 0, p.ColumnCount(model.Root))
	assert.Equal(t, model.Root, p.MapFromSource(model.NewIndex(0, 0, 1)))
	_, ok := p.HeaderData(0, model.Horizontal, model.RoleDisplay)
	assert.False(t, ok)
	assert.False(t, p.InsertRows(0, 1, model.Root))
}

func TestSetSourceModelResets(t *testing.T) {
	first := newTracker(t)
	p := NewIdentity(first)
	rec := record(p)
	old := p.Index(0, 0, p.Index(0, 0, model.Root))

	second := source.NewMemoryModel(1)
	require.True(t, second.InsertRows(0, 1, model.Root))
	require.True(t, second.SetData(second.Index(0, 0, model.Root), "only", model.RoleDisplay))
	p.SetSourceModel(second)

	require.Len(t, rec.got, 1)
	assert.Equal(t, model.Reset, rec.got[0].Kind)
	_, ok := p.Data(old, model.RoleDisplay)
	assert.False(t, ok)
	assert.Equal(t, "only", display(t, p, p.Index(0, 0, model.Root)))

	// The old source is no longer observed.
	require.True(t, first.InsertRows(0, 1, model.Root))
	assert.Len(t, rec.got, 1)
}

func TestSourceResetClearsRegistry(t *testing.T) {
	src := newTracker(t)
	p := NewIdentity(src)
	rec := record(p)
	alpha := p.Index(0, 0, model.Root)
	p.Index(0, 0, alpha)
	require.Equal(t, 2, p.Registry().Len())

	src.Reset()
	assert.Equal(t, 0, p.Registry().Len())
	require.Len(t, rec.got, 1)
	assert.Equal(t, model.Reset, rec.got[0].Kind)
}

func TestCreateSourceIndex(t *testing.T) {
	p := NewIdentity(newTracker(t))
	item := p.EnsureItem(model.Root)
	idx := p.CreateSourceIndex(2, 1, item)
	assert.Equal(t, model.NewIndex(2, 1, model.Owner(item.Handle())), idx)
	assert.Equal(t, p.CreateIndex(2, 1, item), idx)
}
