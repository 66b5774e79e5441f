package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	logx "relaybot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const checkpointsTable = "checkpoints"

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer is all the relay ever has.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	// Checkpoints must survive power loss, not only process crashes.
	_, _ = db.Exec("PRAGMA synchronous = FULL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Load(ctx context.Context) (Progress, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := sq.Select("source", "message_id").
		From(checkpointsTable).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		// Busy or I/O: a Save after an empty Load would wipe every row.
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	p := Progress{}
	for rows.Next() {
		var (
			source string
			id     int64
		)
		if err := rows.Scan(&source, &id); err != nil {
			s.log.Warn("checkpoint row unreadable; starting from zero", logx.Err(err))
			return Progress{}, nil
		}
		p[source] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return p, nil
}

// Save replaces the table contents with p inside one transaction.
func (s *sqliteStore) Save(ctx context.Context, p Progress) (err error) {
	if s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = sq.Delete(checkpointsTable).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}
	if len(p) > 0 {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		ins := sq.Insert(checkpointsTable).Columns("source", "message_id", "updated_at")
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ins = ins.Values(k, p[k], now)
		}
		if _, err = ins.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert checkpoints: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
