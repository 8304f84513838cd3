package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// addedColumns were introduced after the first highlights schema. Older
// databases get them with their defaults.
var addedColumns = []struct {
	name string
	ddl  string
}{
	{"display_name", `ALTER TABLE highlights ADD COLUMN display_name TEXT NOT NULL DEFAULT '';`},
	{"show_in_mentions", `ALTER TABLE highlights ADD COLUMN show_in_mentions INTEGER NOT NULL DEFAULT 0;`},
}

func migrateHighlights(ctx context.Context, db *sql.DB) error {
	columns, err := tableColumns(ctx, db, "highlights")
	if err != nil {
		return errors.Wrap(err, "describe highlights")
	}
	for _, col := range addedColumns {
		if columns[col.name] {
			continue
		}
		if _, err := db.ExecContext(ctx, col.ddl); err != nil {
			return errors.Wrapf(err, "add column %s", col.name)
		}
		slog.Info("sqlite: added column to highlights", "column", col.name)
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		out[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return out, rows.Err()
}
