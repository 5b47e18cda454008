package api

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"
)

// ErrInvalidView is wrapped by every validation error of a View.
var ErrInvalidView = errors.New("invalid view")

// Backends a View can load its document into.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// DefaultChildKey is the field holding a row's children unless configured.
const DefaultChildKey = "children"

// View is the declarative configuration of what lens shows: which document
// to load, where to keep it, and which proxies to stack on top of it.
//
//	source    = "vulns.json"
//	backend   = "sqlite"
//	database  = "vulns.db"
//	child_key = "children"
//
//	filter {
//	  expression = "$[?(@.severity == 'high')]"
//	}
type View struct {
	// Source is the JSON or YAML document to load.
	Source string `hcl:"source,optional" yaml:"source"`
	// Backend is "memory" (default) or "sqlite".
	Backend string `hcl:"backend,optional" yaml:"backend"`
	// Database is the SQLite file used by the sqlite backend.
	Database string `hcl:"database,optional" yaml:"database"`
	// Selector is a JSONPath selecting the top-level rows of Source.
	Selector string `hcl:"selector,optional" yaml:"selector"`
	// ChildKey names the field holding a row's children. Defaults to
	// DefaultChildKey.
	ChildKey string `hcl:"child_key,optional" yaml:"child_key"`
	// MaxDepth limits how deep the tree is printed. 0 means unlimited.
	MaxDepth int `hcl:"max_depth,optional" yaml:"max_depth"`

	Filter *Filter `hcl:"filter,block" yaml:"filter"`
}

// Filter configures a row filter stacked on the view.
type Filter struct {
	// Expression is a JSONPath filter evaluated against each row, e.g.
	// "$[?(@.severity == 'high')]". A row is shown if it matches.
	Expression string `hcl:"expression" yaml:"expression"`
}

// LoadView reads a view from an HCL (.hcl, or HCL-flavored .json) or YAML
// (.yaml, .yml) file and applies defaults.
func LoadView(path string) (*View, error) {
	var v View
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl", ".json":
		if err := hclsimple.DecodeFile(path, nil, &v); err != nil {
			return nil, fmt.Errorf("failed to decode view %s: %w", path, err)
		}
	case ".yaml", ".yml":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(content, &v); err != nil {
			return nil, fmt.Errorf("failed to decode view %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("view %s: unknown extension: %w", path, ErrInvalidView)
	}
	v.Defaults()
	return &v, nil
}

// Defaults fills in unset fields.
func (v *View) Defaults() {
	if v.Backend == "" {
		v.Backend = BackendMemory
	}
	if v.ChildKey == "" {
		v.ChildKey = DefaultChildKey
	}
	if v.Backend == BackendSQLite && v.Database == "" && v.Source != "" {
		v.Database = strings.TrimSuffix(v.Source, filepath.Ext(v.Source)) + ".db"
	}
}

// Validate reports the first inconsistency in v.
func (v *View) Validate() error {
	switch v.Backend {
	case BackendMemory:
		if v.Source == "" {
			return fmt.Errorf("memory backend needs a source document: %w", ErrInvalidView)
		}
	case BackendSQLite:
		if v.Database == "" {
			return fmt.Errorf("sqlite backend needs a database: %w", ErrInvalidView)
		}
	default:
		return fmt.Errorf("unknown backend %q: %w", v.Backend, ErrInvalidView)
	}
	if v.MaxDepth < 0 {
		return fmt.Errorf("max_depth %d is negative: %w", v.MaxDepth, ErrInvalidView)
	}
	if v.Filter != nil && strings.TrimSpace(v.Filter.Expression) == "" {
		return fmt.Errorf("filter block without expression: %w", ErrInvalidView)
	}
	return nil
}
