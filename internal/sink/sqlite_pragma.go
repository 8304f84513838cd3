package sink

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
)

// tuningPragmas trade a little durability for write throughput; highlight
// events are append-only so a lost tail after a crash is acceptable.
var tuningPragmas = []string{
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=5000;",
	"PRAGMA wal_autocheckpoint=1000;",
	"PRAGMA temp_store=MEMORY;",
}

// ApplySQLitePragmas applies the tuning pragmas when GNASTY_SQLITE_TUNING=1.
func ApplySQLitePragmas(ctx context.Context, db *sql.DB) {
	if os.Getenv("GNASTY_SQLITE_TUNING") != "1" {
		return
	}
	for _, pragma := range tuningPragmas {
		value, err := applyPragma(ctx, db, pragma)
		if err != nil {
			slog.Warn("sqlite: pragma failed", "pragma", pragma, "err", err)
			continue
		}
		slog.Info("sqlite: pragma applied", "pragma", pragma, "value", value)
	}
}

func applyPragma(ctx context.Context, db *sql.DB, pragma string) (any, error) {
	var value any
	if err := db.QueryRowContext(ctx, pragma).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				return nil, execErr
			}
			return "ok", nil
		}
		return nil, err
	}
	return value, nil
}
