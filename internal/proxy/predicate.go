package proxy

import (
	"fmt"
	"strconv"

	"github.com/agentic-research/lens/internal/model"
	"github.com/ohler55/ojg/jp"
)

// Record collects the display values of one source row keyed by the
// horizontal header label of each column, or by the column number for
// unlabeled columns. Absent cells are left out.
func Record(src model.Model, row int, parent model.Index) map[string]any {
	cols := src.ColumnCount(parent)
	rec := make(map[string]any, cols)
	for c := 0; c < cols; c++ {
		v, ok := src.Data(src.Index(row, c, parent), model.RoleDisplay)
		if !ok {
			continue
		}
		rec[columnKey(src, c)] = v
	}
	return rec
}

func columnKey(src model.Model, column int) string {
	if h, ok := src.HeaderData(column, model.Horizontal, model.RoleDisplay); ok {
		if s := fmt.Sprint(h); s != "" {
			return s
		}
	}
	return strconv.Itoa(column)
}

// JSONPath compiles a predicate from a JSONPath expression. The expression
// is evaluated against a one-element array holding the row's Record, and
// the row is accepted when it selects anything, e.g.
//
//	$[?(@.status == 'open')]
//	$[?(@.priority > 2)]
func JSONPath(expr string) (Predicate, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	return func(src model.Model, row int, parent model.Index) bool {
		return len(x.Get([]any{Record(src, row, parent)})) > 0
	}, nil
}
