// Package store persists run summaries and classification rows to
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/user/stigforge/pkg/logging"
	"github.com/user/stigforge/pkg/pipeline"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNoDatabaseURL is returned by Connect when no URL is configured.
var ErrNoDatabaseURL = errors.New("database url is empty")

const (
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

var openDB = sql.Open

// Options controls the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	PingTimeout  time.Duration
}

// DefaultOptions suits a short-lived CLI batch.
func DefaultOptions() Options {
	return Options{MaxOpenConns: 4, MaxIdleConns: 2, PingTimeout: 5 * time.Second}
}

// Store writes runs to a database.
type Store struct {
	DB *sql.DB
}

// Connect opens the database and verifies connectivity, retrying the ping
// while the server comes up.
func Connect(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrNoDatabaseURL
	}
	db, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	err = retry.Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return db.PingContext(pingCtx)
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logging.Debugf("database connected")
	return &Store{DB: db}, nil
}

// Migrate applies the embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.DB, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

const insertRun = `INSERT INTO runs
	(id, mode, started_at, finished_at, total, synthesized, manual_placeholder, skipped, failed, errors)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertClassification = `INSERT INTO classifications
	(run_id, record_index, vuln_id, stig_id, rule_id, severity, platform, category, check_type,
	 confidence, tier, reasons, ruleset_version, artifact_path, synthesis_status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// SaveRun writes the run and one row per processed record in a single
// transaction.
func (s *Store) SaveRun(ctx context.Context, res *pipeline.Result) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	st := res.Stats
	if _, err = tx.ExecContext(ctx, insertRun, res.RunID, string(res.Mode), res.Started, res.Finished,
		st.Total, st.Synthesized, st.ManualPlaceholder, st.Skipped, st.Failed, st.Errors); err != nil {
		return fmt.Errorf("insert run %s: %w", res.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertClassification)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range res.Outcomes {
		c := o.Classification
		var path, status sql.NullString
		if o.Artifact != nil {
			path = sql.NullString{String: o.Artifact.Path, Valid: true}
			status = sql.NullString{String: string(o.Artifact.Status), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, res.RunID, o.Index, c.VulnID, c.StigID, c.RuleID,
			string(c.Severity), string(c.Platform), string(c.Category), string(c.CheckType),
			string(c.Confidence), c.Tier, strings.Join(c.Reasons, ";"), c.RulesetVersion,
			path, status); err != nil {
			return fmt.Errorf("insert classification %d: %w", o.Index, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logging.Infof("saved run %s (%d rows)", res.RunID, len(res.Outcomes))
	return nil
}
