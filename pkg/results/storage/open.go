package storage

import (
	"fmt"
	"log/slog"

	"drivelogic-hq/reasoner/pkg/config"
	"drivelogic-hq/reasoner/pkg/results"
)

// Open creates the store selected by cfg.Backend.
func Open(cfg config.ResultsConfig, logger *slog.Logger) (results.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown results backend %q", cfg.Backend)
	}
}
