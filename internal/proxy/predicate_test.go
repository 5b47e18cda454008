package proxy

import (
	"testing"

	"github.com/agentic-research/lens/internal/model"
	"github.com/agentic-research/lens/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	src := newTracker(t)
	assert.Equal(t, map[string]any{"name": "beta", "status": "closed"}, Record(src, 1, model.Root))

	bare := source.NewMemoryModel(2)
	require.True(t, bare.InsertRows(0, 1, model.Root))
	require.True(t, bare.SetData(bare.Index(0, 1, model.Root), int64(4), model.RoleDisplay))
	assert.Equal(t, map[string]any{"1": int64(4)}, Record(bare, 0, model.Root))
}

func TestJSONPath(t *testing.T) {
	src := newTracker(t)

	tests := []struct {
		name string
		expr string
		want []bool
	}{
		{"equality", "$[?(@.status == 'open')]", []bool{true, false, true}},
		{"inequality", "$[?(@.status != 'open')]", []bool{false, true, false}},
		{"conjunction", "$[?(@.status == 'open' && @.name == 'gamma')]", []bool{false, false, true}},
		{"missing field", "$[?(@.owner == 'x')]", []bool{false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accept, err := JSONPath(tt.expr)
			require.NoError(t, err)
			for row, want := range tt.want {
				assert.Equal(t, want, accept(src, row, model.Root), "row %d", row)
			}
		})
	}

	_, err := JSONPath("$[?(@.status ==")
	assert.Error(t, err)
}
