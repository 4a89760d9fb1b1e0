package returner

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// SqliteSink stores outcomes in a local SQLite database so results survive
// restarts and can be queried off-node.
type SqliteSink struct {
	db *sql.DB
}

func NewSqliteSink(path string, busyTimeout time.Duration) (*SqliteSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite returner: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &SqliteSink{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteSink) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *SqliteSink) Name() string { return "sqlite" }

func (s *SqliteSink) Deliver(ctx context.Context, o Outcome) error {
	ret, err := json.Marshal(o.Return)
	if err != nil {
		ret = []byte(fmt.Sprintf("%q", fmt.Sprint(o.Return)))
	}
	args, err := json.Marshal(o.FunArgs)
	if err != nil {
		args = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO job_returns (node, jid, schedule, fun, fun_args, success, return_json, error, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Node, o.JID, o.Schedule, o.Fun, string(args), o.Success,
		string(ret), o.Error, o.Started.UTC(), o.Finished.UTC())
	if err != nil {
		return fmt.Errorf("sqlite returner: %w", err)
	}
	return nil
}

// Recent returns the newest n outcomes for diagnostics, most recent first.
func (s *SqliteSink) Recent(ctx context.Context, n int) ([]Outcome, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT node, jid, schedule, fun, fun_args, success, return_json, error, started_at, finished_at
FROM job_returns ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var args, ret string
		if err := rows.Scan(&o.Node, &o.JID, &o.Schedule, &o.Fun, &args,
			&o.Success, &ret, &o.Error, &o.Started, &o.Finished); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(args), &o.FunArgs)
		_ = json.Unmarshal([]byte(ret), &o.Return)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SqliteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
