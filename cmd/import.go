package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/agentic-research/lens/api"
	"github.com/agentic-research/lens/internal/model"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var selector, childKey string

	cmd := &cobra.Command{
		Use:   "import [document] [output.db]",
		Short: "Load a JSON or YAML document into a lens SQLite database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := &api.View{
				Source:   args[0],
				Backend:  api.BackendSQLite,
				Database: args[1],
				Selector: selector,
				ChildKey: childKey,
			}
			v.Defaults()
			if err := v.Validate(); err != nil {
				return err
			}

			// Start from an empty database.
			if err := os.Remove(v.Database); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove existing db: %w", err)
			}

			src, closeSrc, err := openSource(v, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = closeSrc() }()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows x %d columns into %s\n",
				countRows(src), src.ColumnCount(model.Root), v.Database)
			return nil
		},
	}
	cmd.Flags().StringVar(&selector, "selector", "", "JSONPath selecting the top-level rows (default $[*])")
	cmd.Flags().StringVar(&childKey, "child-key", api.DefaultChildKey, "Field holding a row's children")
	return cmd
}
