package proxy

import (
	"testing"

	"github.com/agentic-research/lens/internal/model"
	"github.com/agentic-research/lens/internal/source"
	"github.com/stretchr/testify/require"
)

// newTracker builds a two-column table:
//
//	alpha  open
//	  a1   closed
//	  a2   open
//	beta   closed
//	gamma  open
func newTracker(t *testing.T) *source.MemoryModel {
	t.Helper()
	m := source.NewMemoryModel(2)
	require.True(t, m.SetHeaderData(0, model.Horizontal, "name", model.RoleDisplay))
	require.True(t, m.SetHeaderData(1, model.Horizontal, "status", model.RoleDisplay))

	fill := func(parent model.Index, rows [][2]string) {
		require.True(t, m.InsertRows(0, len(rows), parent))
		for r, cells := range rows {
			for c, v := range cells {
				require.True(t, m.SetData(m.Index(r, c, parent), v, model.RoleDisplay))
			}
		}
	}
	fill(model.Root, [][2]string{{"alpha", "open"}, {"beta", "closed"}, {"gamma", "open"}})
	fill(m.Index(0, 0, model.Root), [][2]string{{"a1", "closed"}, {"a2", "open"}})
	return m
}

// recorder collects the mutations a model broadcasts.
type recorder struct {
	got []model.Mutation
}

func record(m interface{ Subscribe(model.Listener) func() }) *recorder {
	r := &recorder{}
	m.Subscribe(model.ListenerFunc(func(mu model.Mutation) { r.got = append(r.got, mu) }))
	return r
}

func display(t *testing.T, m model.Model, idx model.Index) any {
	t.Helper()
	v, _ := m.Data(idx, model.RoleDisplay)
	return v
}
