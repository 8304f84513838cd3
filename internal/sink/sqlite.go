package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/you/gnasty-highlights/internal/core"
	"github.com/you/gnasty-highlights/internal/httpapi"
)

const schema = `CREATE TABLE IF NOT EXISTS highlights (
  id TEXT NOT NULL PRIMARY KEY,
  ts TEXT NOT NULL,
  message_id TEXT NOT NULL DEFAULT '',
  channel TEXT NOT NULL DEFAULT '',
  username TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  platform TEXT NOT NULL,
  kind TEXT NOT NULL DEFAULT 'chat',
  text TEXT NOT NULL,
  badges_json TEXT NOT NULL DEFAULT '[]',
  colour TEXT NOT NULL DEFAULT '',
  alert INTEGER NOT NULL DEFAULT 0,
  play_sound INTEGER NOT NULL DEFAULT 0,
  sound_url TEXT NOT NULL DEFAULT '',
  color TEXT NOT NULL DEFAULT '',
  show_in_mentions INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS highlights_ts ON highlights (ts);`

const selectColumns = `id, ts, message_id, channel, username, display_name, platform, kind, text, badges_json, colour, alert, play_sound, sound_url, color, show_in_mentions`

// SQLiteSink persists highlight events.
type SQLiteSink struct {
	db *sql.DB
}

const defaultListLimit = 100

func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	if err := migrateHighlights(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	ApplySQLitePragmas(context.Background(), db)
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }

func (s *SQLiteSink) Write(ev core.HighlightEvent) error {
	const q = `INSERT INTO highlights (` + selectColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING;`
	msg := ev.Message
	_, err := s.db.Exec(q, ev.ID, ev.Ts.UTC().Format(time.RFC3339Nano), msg.ID, msg.Channel,
		msg.Username, msg.DisplayName, msg.Platform, nz(string(msg.Kind), string(core.KindChat)), msg.Text,
		encodeBadges(msg.Badges), msg.Colour, ev.Alert, ev.PlaySound, ev.SoundURL, ev.Color, ev.ShowInMentions)
	return errors.Wrap(err, "insert highlight")
}

func nz(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func encodeBadges(badges []core.ChatBadge) string {
	if len(badges) == 0 {
		return "[]"
	}
	b, err := json.Marshal(badges)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func (s *SQLiteSink) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteSink) String() string {
	return fmt.Sprintf("SQLiteSink{%p}", s.db)
}

func (s *SQLiteSink) CountHighlights(ctx context.Context, filters httpapi.Filters) (int64, error) {
	query, args := buildHighlightQuery(filters, true)
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}

func (s *SQLiteSink) ListHighlights(ctx context.Context, filters httpapi.Filters) ([]core.HighlightEvent, error) {
	query, args := buildHighlightQuery(filters, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list highlights")
	}
	defer rows.Close()

	var out []core.HighlightEvent
	for rows.Next() {
		var (
			ev     core.HighlightEvent
			ts     string
			kind   string
			badges string
		)
		msg := &ev.Message
		if err := rows.Scan(&ev.ID, &ts, &msg.ID, &msg.Channel, &msg.Username, &msg.DisplayName, &msg.Platform, &kind,
			&msg.Text, &badges, &msg.Colour, &ev.Alert, &ev.PlaySound, &ev.SoundURL, &ev.Color, &ev.ShowInMentions); err != nil {
			return nil, errors.Wrap(err, "scan highlight")
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Ts = t
			msg.Ts = t
		}
		msg.Kind = core.MessageKind(kind)
		if badges != "" && badges != "[]" {
			if err := json.Unmarshal([]byte(badges), &msg.Badges); err != nil {
				return nil, errors.Wrapf(err, "decode badges for %s", ev.ID)
			}
		}
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate highlights")
	}
	return out, nil
}

func buildHighlightQuery(filters httpapi.Filters, count bool) (string, []any) {
	var builder strings.Builder
	if count {
		builder.WriteString("SELECT COUNT(*) FROM highlights")
	} else {
		builder.WriteString("SELECT " + selectColumns + " FROM highlights")
	}

	var (
		conditions []string
		args       []any
	)

	if len(filters.Channels) > 0 {
		conditions = append(conditions, fmt.Sprintf("LOWER(channel) IN (%s)", placeholders(len(filters.Channels))))
		for _, c := range filters.Channels {
			args = append(args, c)
		}
	}

	if len(filters.Kinds) > 0 {
		conditions = append(conditions, fmt.Sprintf("kind IN (%s)", placeholders(len(filters.Kinds))))
		for _, k := range filters.Kinds {
			args = append(args, string(k))
		}
	}

	if len(filters.Usernames) > 0 {
		ors := make([]string, 0, len(filters.Usernames))
		for _, u := range filters.Usernames {
			ors = append(ors, "LOWER(username) LIKE '%' || ? || '%'")
			args = append(args, u)
		}
		conditions = append(conditions, fmt.Sprintf("(%s)", strings.Join(ors, " OR ")))
	}

	if filters.Since != nil {
		conditions = append(conditions, "ts >= ?")
		args = append(args, filters.Since.UTC().Format(time.RFC3339Nano))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	if !count {
		order := "DESC"
		if filters.Order == httpapi.OrderAsc {
			order = "ASC"
		}
		builder.WriteString(" ORDER BY ts ")
		builder.WriteString(order)
		limit := filters.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	builder.WriteString(";")
	return builder.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
