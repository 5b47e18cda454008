package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentic-research/lens/internal/model"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrRejected          = errors.New("model rejected edit")
)

const (
	// DefaultSelector selects the elements of a top-level array.
	DefaultSelector = "$[*]"
	// ValueColumn holds rows selected from scalars or arrays.
	ValueColumn = "value"
)

// Target is a model the loader can fill: the standard edit operations plus
// horizontal header labels.
type Target interface {
	model.Model
	SetHeaderData(section int, orientation model.Orientation, value any, role model.Role) bool
}

// Loader turns a JSON or YAML document into rows of a Target.
//
// Selector picks the top-level rows. Each selected object becomes a row
// whose columns are the object's fields; the field named ChildKey, when it
// holds an array, becomes the row's children, recursively. Columns are the
// sorted union of field names across the whole document and are appended to
// the target's existing headers as needed.
type Loader struct {
	Selector string
	ChildKey string
	Logger   *slog.Logger
}

// DecodeFile reads a document. .json is parsed with ojg, .yaml/.yml with
// yaml.v3; integers decode to int64 either way.
func DecodeFile(path string) (any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		doc, err := oj.ParseString(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse json %s: %w", path, err)
		}
		return doc, nil
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml %s: %w", path, err)
		}
		return normalizeYAML(doc), nil
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// normalizeYAML converts yaml.v3 decoding results to the JSON shapes the
// rest of the pipeline expects.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeYAML(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalizeYAML(e)
		}
		return t
	case int:
		return int64(t)
	}
	return v
}

// LoadFile decodes path and loads it into dst.
func (l *Loader) LoadFile(path string, dst Target) error {
	doc, err := DecodeFile(path)
	if err != nil {
		return err
	}
	if err := l.Load(doc, dst); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load appends the rows selected from doc to the top level of dst.
func (l *Loader) Load(doc any, dst Target) error {
	selector := l.Selector
	if selector == "" {
		selector = DefaultSelector
	}
	records, err := selectRows(doc, selector)
	if err != nil {
		return err
	}

	columns, err := l.ensureColumns(dst, records)
	if err != nil {
		return err
	}
	n, err := l.appendRows(dst, model.Root, records, columns)
	if err != nil {
		return err
	}
	l.logger().Debug("document loaded", "rows", n, "columns", len(columns))
	return nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// children returns the child records of rec, nil if it has none.
func (l *Loader) children(rec map[string]any) []map[string]any {
	if l.ChildKey == "" {
		return nil
	}
	list, ok := rec[l.ChildKey].([]any)
	if !ok {
		return nil
	}
	return toRecords(list)
}

// selectRows evaluates selector against doc and returns one record per
// selected value.
func selectRows(doc any, selector string) ([]map[string]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid row selector '%s': %w", selector, err)
	}
	return toRecords(x.Get(doc)), nil
}

// toRecords turns selected values into row records. Objects supply their
// fields as columns; any other value fills a single ValueColumn.
func toRecords(values []any) []map[string]any {
	out := make([]map[string]any, len(values))
	for i, v := range values {
		if obj, ok := v.(map[string]any); ok {
			out[i] = obj
			continue
		}
		out[i] = map[string]any{ValueColumn: v}
	}
	return out
}

// collectKeys gathers field names of records and their descendants.
func (l *Loader) collectKeys(records []map[string]any, into map[string]struct{}) {
	for _, rec := range records {
		for k := range rec {
			if k == l.ChildKey && l.children(rec) != nil {
				continue
			}
			into[k] = struct{}{}
		}
		l.collectKeys(l.children(rec), into)
	}
}

// ensureColumns makes sure dst has a labeled top-level column for every
// field and returns the column of each field.
func (l *Loader) ensureColumns(dst Target, records []map[string]any) (map[string]int, error) {
	columns := make(map[string]int)
	n := dst.ColumnCount(model.Root)
	for c := 0; c < n; c++ {
		if h, ok := dst.HeaderData(c, model.Horizontal, model.RoleDisplay); ok {
			columns[fmt.Sprint(h)] = c
		}
	}

	keys := make(map[string]struct{})
	l.collectKeys(records, keys)
	var missing []string
	for k := range keys {
		if _, ok := columns[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return columns, nil
	}
	sort.Strings(missing)

	if !dst.InsertColumns(n, len(missing), model.Root) {
		return nil, fmt.Errorf("insert %d columns: %w", len(missing), ErrRejected)
	}
	for i, k := range missing {
		if !dst.SetHeaderData(n+i, model.Horizontal, k, model.RoleDisplay) {
			return nil, fmt.Errorf("label column %q: %w", k, ErrRejected)
		}
		columns[k] = n + i
	}
	return columns, nil
}

// appendRows appends records under parent and returns the number of rows
// written, descendants included.
func (l *Loader) appendRows(dst Target, parent model.Index, records []map[string]any, columns map[string]int) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	start := dst.RowCount(parent)
	if !dst.InsertRows(start, len(records), parent) {
		return 0, fmt.Errorf("insert %d rows under %s: %w", len(records), parent, ErrRejected)
	}
	total := len(records)
	for i, rec := range records {
		row := start + i
		for k, v := range rec {
			col, ok := columns[k]
			if !ok {
				continue // the child list
			}
			idx := dst.Index(row, col, parent)
			if !idx.Valid() {
				// Nested grids only have the columns they had when the
				// row was created.
				continue
			}
			if !dst.SetData(idx, v, model.RoleDisplay) {
				return total, fmt.Errorf("set %q of row %d: %w", k, row, ErrRejected)
			}
		}
		kids := l.children(rec)
		if len(kids) == 0 {
			continue
		}
		anchor := dst.Index(row, 0, parent)
		if !anchor.Valid() {
			continue
		}
		n, err := l.appendRows(dst, anchor, kids, columns)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
