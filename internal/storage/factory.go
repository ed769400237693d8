package storage

import (
	"context"
	"fmt"

	"github.com/yourname/babysleep/internal"
	"github.com/yourname/babysleep/internal/config"
)

// New opens the backend selected by cfg.DBType.
func New(ctx context.Context, cfg *config.Config, logger internal.Logger) (EntryStore, error) {
	switch cfg.DBType {
	case "file":
		return NewFileStorage(cfg.FileSleep, logger)
	case "sqlite":
		return NewSQLiteStorage(ctx, cfg.SQLitePath, logger)
	case "postgres":
		return NewPostgresStorage(ctx, cfg.DBDSN, logger)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.DBType)
	}
}
