package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/agentic-research/lens/api"
	"github.com/agentic-research/lens/internal/model"
	"github.com/agentic-research/lens/internal/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type showFlags struct {
	config   string
	backend  string
	database string
	selector string
	childKey string
	filter   string
	depth    int
	metrics  bool
}

func newShowCmd() *cobra.Command {
	var f showFlags

	cmd := &cobra.Command{
		Use:   "show [document]",
		Short: "Print a document through the configured view",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := resolveView(cmd, &f, args)
			if err != nil {
				return err
			}
			return runShow(cmd.OutOrStdout(), v, f.metrics)
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "Path to view configuration (.hcl, .json, .yaml)")
	cmd.Flags().StringVar(&f.backend, "backend", "", "Source backend: memory or sqlite")
	cmd.Flags().StringVar(&f.database, "db", "", "SQLite database for the sqlite backend")
	cmd.Flags().StringVar(&f.selector, "selector", "", "JSONPath selecting the top-level rows")
	cmd.Flags().StringVar(&f.childKey, "child-key", "", "Field holding a row's children")
	cmd.Flags().StringVarP(&f.filter, "filter", "f", "", "JSONPath filter applied to every row")
	cmd.Flags().IntVar(&f.depth, "depth", 0, "Maximum depth to print (0 = unlimited)")
	cmd.Flags().BoolVar(&f.metrics, "metrics", false, "Print proxy metrics after the tree")
	return cmd
}

// resolveView loads the configured view and applies flag overrides.
func resolveView(cmd *cobra.Command, f *showFlags, args []string) (*api.View, error) {
	v := &api.View{}
	if f.config != "" {
		loaded, err := api.LoadView(f.config)
		if err != nil {
			return nil, err
		}
		v = loaded
	}

	flags := cmd.Flags()
	if len(args) == 1 {
		v.Source = args[0]
	}
	if flags.Changed("backend") {
		v.Backend = f.backend
	}
	if flags.Changed("db") {
		v.Database = f.database
	}
	if flags.Changed("selector") {
		v.Selector = f.selector
	}
	if flags.Changed("child-key") {
		v.ChildKey = f.childKey
	}
	if flags.Changed("filter") {
		v.Filter = &api.Filter{Expression: f.filter}
	}
	if flags.Changed("depth") {
		v.MaxDepth = f.depth
	}
	v.Defaults()
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func runShow(w io.Writer, v *api.View, withMetrics bool) error {
	logger := slog.Default()
	src, closeSrc, err := openSource(v, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeSrc() }()

	reg := prometheus.NewRegistry()
	optsFor := func(name string) []proxy.Option {
		return []proxy.Option{
			proxy.WithLogger(logger.With("proxy", name)),
			proxy.WithMetrics(proxy.NewMetrics(
				prometheus.WrapRegistererWith(prometheus.Labels{"proxy": name}, reg))),
		}
	}

	var view model.Model = proxy.NewIdentity(src, optsFor("identity")...)
	if v.Filter != nil {
		accept, err := proxy.JSONPath(v.Filter.Expression)
		if err != nil {
			return err
		}
		view = proxy.NewFilter(view, accept, optsFor("filter")...)
	}

	printHeader(w, view)
	printTree(w, view, model.Root, 0, v.MaxDepth)

	if withMetrics {
		return printMetrics(w, reg)
	}
	return nil
}

func printHeader(w io.Writer, m model.Model) {
	cols := m.ColumnCount(model.Root)
	labels := make([]string, cols)
	for c := range labels {
		if h, ok := m.HeaderData(c, model.Horizontal, model.RoleDisplay); ok {
			labels[c] = fmt.Sprint(h)
		}
	}
	_, _ = fmt.Fprintln(w, strings.Join(labels, "\t"))
}

// printTree writes one line per row, indented two spaces per level, cells
// separated by tabs.
func printTree(w io.Writer, m model.Model, parent model.Index, depth, maxDepth int) {
	if maxDepth > 0 && depth >= maxDepth {
		return
	}
	rows := m.RowCount(parent)
	cols := m.ColumnCount(parent)
	indent := strings.Repeat("  ", depth)
	for r := 0; r < rows; r++ {
		cells := make([]string, cols)
		for c := range cells {
			if v, ok := m.Data(m.Index(r, c, parent), model.RoleDisplay); ok {
				cells[c] = fmt.Sprint(v)
			}
		}
		_, _ = fmt.Fprintln(w, indent+strings.Join(cells, "\t"))
		if child := m.Index(r, 0, parent); child.Valid() {
			printTree(w, m, child, depth+1, maxDepth)
		}
	}
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)

			value := m.GetCounter().GetValue()
			if m.GetGauge() != nil {
				value = m.GetGauge().GetValue()
			}
			_, _ = fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}

// countRows counts every row of m, descendants included.
func countRows(m model.Model) int {
	var walk func(parent model.Index) int
	walk = func(parent model.Index) int {
		n := m.RowCount(parent)
		total := n
		for r := 0; r < n; r++ {
			if child := m.Index(r, 0, parent); child.Valid() {
				total += walk(child)
			}
		}
		return total
	}
	return walk(model.Root)
}
