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
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "guildmirror/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	keep int

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
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

	st := &sqliteStore{db: db, log: log, keep: cfg.Keep, pruneEvery: 50}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
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

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordRun(ctx context.Context, rec RunRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs(started_at, elapsed_ms, source, source_name, target, target_name, trigger_kind,
		                  roles, categories, text_channels, voice_channels, messages, errors, err)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.ElapsedMS,
		rec.Source, nullStr(rec.SourceName), rec.Target, nullStr(rec.TargetName), nullStr(rec.Trigger),
		rec.Roles, rec.Categories, rec.TextChannels, rec.VoiceChannels, rec.Messages, rec.Errors, nullStr(rec.Error),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, ch := range rec.Channels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_channels(run_id, pos, source_id, target_id, name, fetched, sent, skipped, failed, err)
			 VALUES(?,?,?,?,?,?,?,?,?,?)`,
			id, i, ch.SourceID, ch.TargetID, ch.Name, ch.Fetched, ch.Sent, ch.Skipped, ch.Failed, nullStr(ch.Error),
		); err != nil {
			return 0, err
		}
	}
	for _, p := range rec.IDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO run_ids(run_id, kind, source_id, target_id) VALUES(?,?,?,?)`,
			id, p.Kind, p.SourceID, p.TargetID,
		); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	if s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.prune(pctx); err != nil {
			s.log.Debug("runs prune failed", logx.Err(err))
		}
		cancel()
	}
	return id, nil
}

func (s *sqliteStore) RecentRuns(ctx context.Context, n int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, elapsed_ms, source, source_name, target, target_name, trigger_kind,
		        roles, categories, text_channels, voice_channels, messages, errors, err
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	var out []RunRecord
	for rows.Next() {
		var (
			r                                  RunRecord
			started                            string
			srcName, dstName, trigger, errText sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &r.ElapsedMS, &r.Source, &srcName, &r.Target, &dstName, &trigger,
			&r.Roles, &r.Categories, &r.TextChannels, &r.VoiceChannels, &r.Messages, &r.Errors, &errText); err != nil {
			_ = rows.Close()
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.SourceName, r.TargetName, r.Trigger, r.Error = srcName.String, dstName.String, trigger.String, errText.String
		out = append(out, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Channels, err = s.channels(ctx, out[i].ID); err != nil {
			return nil, err
		}
		if out[i].IDs, err = s.ids(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *sqliteStore) channels(ctx context.Context, runID int64) ([]ChannelRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, target_id, name, fetched, sent, skipped, failed, err
		 FROM run_channels WHERE run_id = ? ORDER BY pos`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChannelRecord
	for rows.Next() {
		var c ChannelRecord
		var errText sql.NullString
		if err := rows.Scan(&c.SourceID, &c.TargetID, &c.Name, &c.Fetched, &c.Sent, &c.Skipped, &c.Failed, &errText); err != nil {
			return nil, err
		}
		c.Error = errText.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ids(ctx context.Context, runID int64) ([]IDRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, source_id, target_id FROM run_ids WHERE run_id = ? ORDER BY kind, length(source_id), source_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []IDRecord
	for rows.Next() {
		var p IDRecord
		if err := rows.Scan(&p.Kind, &p.SourceID, &p.TargetID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// prune drops everything but the newest keep runs.
func (s *sqliteStore) prune(ctx context.Context) error {
	if s == nil || s.db == nil || s.keep <= 0 {
		return nil
	}
	var cutoff int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY id DESC LIMIT 1 OFFSET ?`, s.keep).Scan(&cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM run_channels WHERE run_id <= ?`,
		`DELETE FROM run_ids WHERE run_id <= ?`,
		`DELETE FROM runs WHERE id <= ?`,
	} {
		if _, err := s.db.ExecContext(ctx, q, cutoff); err != nil {
			return err
		}
	}
	return nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
