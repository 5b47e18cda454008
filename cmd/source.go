package cmd

import (
	"fmt"
	"log/slog"

	"github.com/agentic-research/lens/api"
	"github.com/agentic-research/lens/internal/ingest"
	"github.com/agentic-research/lens/internal/source"
)

// openSource builds the source model a view describes. The returned close
// function releases it.
func openSource(v *api.View, logger *slog.Logger) (ingest.Target, func() error, error) {
	loader := &ingest.Loader{
		Selector: v.Selector,
		ChildKey: v.ChildKey,
		Logger:   logger,
	}

	switch v.Backend {
	case api.BackendSQLite:
		db, err := source.OpenSQLiteModel(v.Database, source.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		if v.Source != "" {
			if err := db.Reset(); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("reset %s: %w", v.Database, err)
			}
			if err := loader.LoadFile(v.Source, db); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return db, db.Close, nil
	default:
		mem := source.NewMemoryModel(0)
		if err := loader.LoadFile(v.Source, mem); err != nil {
			return nil, nil, err
		}
		return mem, func() error { return nil }, nil
	}
}
