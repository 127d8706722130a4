package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"a11y-gateway/internal/config"
)

// JobRecord is one processed request.
type JobRecord struct {
	ID         uuid.UUID
	Kind       string
	Filename   string
	Converted  bool
	Status     string
	ErrorStage string
	ReportPath string
	Duration   time.Duration
	CreatedAt  time.Time
}

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Ledger appends job records to Postgres.
type Ledger struct {
	db *sql.DB
}

func postgresPort(cfg config.PostgresConfig) int {
	if cfg.Port != 0 {
		return cfg.Port
	}
	return 5432
}

func postgresDSN(cfg config.PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	if cfg.Host == "" {
		return "", fmt.Errorf("postgres host is empty")
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("postgres database is empty")
	}
	if cfg.User == "" {
		return "", fmt.Errorf("postgres user is empty")
	}

	hostPort := cfg.Host
	port := postgresPort(cfg)
	// Handle IPv6 or explicit host:port strings.
	if strings.HasPrefix(hostPort, "[") {
		if !strings.Contains(hostPort, "]:") {
			hostPort = fmt.Sprintf("%s:%d", hostPort, port)
		}
	} else if strings.Count(hostPort, ":") >= 2 {
		hostPort = fmt.Sprintf("[%s]:%d", hostPort, port)
	} else if !strings.Contains(hostPort, ":") {
		hostPort = fmt.Sprintf("%s:%d", hostPort, port)
	}

	u := &url.URL{Scheme: "postgres", Host: hostPort, Path: "/" + cfg.Database}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open connects, pings and makes sure the jobs table exists.
func Open(ctx context.Context, cfg config.PostgresConfig) (*Ledger, error) {
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Low-throughput append-only table.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	l := NewLedger(db)
	if err := l.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewLedger wraps an open handle. Open also creates the schema.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ddl1 := `CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		filename TEXT NOT NULL,
		converted BOOLEAN NOT NULL DEFAULT false,
		status TEXT NOT NULL,
		error_stage TEXT,
		report_path TEXT,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	ddl2 := `CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at);`
	if _, err := l.db.ExecContext(ctx, ddl1); err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, ddl2); err != nil {
		return err
	}
	return nil
}

// Record inserts rec, filling in ID and CreatedAt when unset.
func (l *Ledger) Record(ctx context.Context, rec JobRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO jobs (id, kind, filename, converted, status, error_stage, report_path, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)`,
		rec.ID.String(), rec.Kind, rec.Filename, rec.Converted, rec.Status,
		rec.ErrorStage, rec.ReportPath, rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job record: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}
