package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/target/brandpulse/internal/migrate"
)

// RunMigrations applies the embedded schema and logs the versions it applied.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	res, err := migrate.RunWithOptions(ctx, db, migrate.Options{Logger: logger})
	if err != nil {
		return err
	}
	if logger != nil && len(res.Applied) > 0 {
		logger.InfoContext(ctx, "migrations applied", "versions", res.Applied, "skipped", res.Skipped)
	}
	return nil
}
