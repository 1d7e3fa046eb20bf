package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/extract"
	"github.com/user/stigforge/pkg/pipeline"
	"github.com/user/stigforge/pkg/record"
	"github.com/user/stigforge/pkg/synth"
)

func sampleResult() *pipeline.Result {
	stats := pipeline.NewStats()
	stats.Total, stats.Synthesized = 2, 1
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	return &pipeline.Result{
		RunID:    "0b9a3a8e-3f0e-4b8e-9c59-1df1d5c0f001",
		Mode:     pipeline.ModeGenerate,
		Started:  now,
		Finished: now.Add(time.Second),
		Stats:    stats,
		Outcomes: []pipeline.Outcome{
			{
				Index: 0,
				Classification: classify.Classification{
					VulnID: "V-1", StigID: "RHEL-08-010000", Severity: record.SeverityMedium,
					Platform: record.PlatformLinux, Category: classify.CategoryFullyAutomated,
					CheckType: extract.TypeFilePermission, Confidence: extract.ConfidenceHigh,
					Tier: classify.TierTechnical, Reasons: []string{"technical.file_permission"}, RulesetVersion: "1",
				},
				Artifact: &synth.GeneratedArtifact{Path: "out/linux/RHEL-08-010000.sh", Status: synth.StatusSynthesized},
			},
			{
				Index: 1,
				Classification: classify.Classification{
					VulnID: "V-2", Severity: record.SeverityLow, Platform: record.PlatformLinux,
					Category: classify.CategoryManualReview, CheckType: extract.TypeUnknown,
					Confidence: extract.ConfidenceLow, Tier: classify.TierManual,
					Reasons: []string{"manual.interview"}, RulesetVersion: "1",
				},
			},
		},
	}
}

func TestSaveRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	res := sampleResult()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").
		WithArgs(res.RunID, "generate", res.Started, res.Finished, 2, 1, 0, 0, 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare("INSERT INTO classifications")
	prep.ExpectExec().
		WithArgs(res.RunID, 0, "V-1", "RHEL-08-010000", "", "medium", "linux", "fully_automated",
			"file_permission", "high", "technical", "technical.file_permission", "1",
			"out/linux/RHEL-08-010000.sh", "synthesized").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(res.RunID, 1, "V-2", "", "", "low", "linux", "manual_review",
			"unknown", "low", "manual", "manual.interview", "1", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := (&Store{DB: db}).SaveRun(context.Background(), res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSaveRunRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	boom := errors.New("duplicate key")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnError(boom)
	mock.ExpectRollback()

	err = (&Store{DB: db}).SaveRun(context.Background(), sampleResult())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped insert error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestConnectPings(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	mock.ExpectPing()

	prev := openDB
	openDB = func(driver, dsn string) (*sql.DB, error) {
		if driver != "pgx" {
			t.Errorf("expected pgx driver, got %s", driver)
		}
		return db, nil
	}
	t.Cleanup(func() { openDB = prev })

	s, err := Connect(context.Background(), "postgres://localhost/stigforge", DefaultOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", DefaultOptions()); !errors.Is(err, ErrNoDatabaseURL) {
		t.Errorf("expected ErrNoDatabaseURL, got %v", err)
	}
}
