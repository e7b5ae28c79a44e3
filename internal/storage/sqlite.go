package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"goalbot/internal/tracker"
	logx "goalbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db       *sql.DB
	log      logx.Logger
	keepDays int
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	keep := cfg.KeepDays
	if keep <= 0 {
		keep = 14
	}
	st := &sqliteStore{db: db, log: log, keepDays: keep}

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	var count int64
	_ = db.QueryRow(`SELECT COUNT(*) FROM announcements`).Scan(&count)
	log.Info("announcement log opened", logx.String("path", cfg.Path), logx.Int64("rows", count))
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

func (s *sqliteStore) Record(ctx context.Context, kind string, g tracker.Goal, text string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO announcements(at, game_id, key, kind, scorer, team, score, text)
		 VALUES(?,?,?,?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		g.GameID, g.Key(), kind, g.Scorer, g.Team, g.DisplayScore(), text,
	)
	return err
}

func (s *sqliteStore) Prune(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.keepDays).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM announcements WHERE at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("pruned old announcements", logx.Int64("removed", n))
	}
	return n, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
