// Package audit appends OAuth connection lifecycle events to Postgres for
// operator debugging. The trail is best-effort: a failed insert is logged and
// never fails the flow that produced it.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

// Lifecycle actions recorded in the trail.
const (
	ActionInitiate   = "initiate"
	ActionCallback   = "callback"
	ActionDisconnect = "disconnect"
	ActionRefresh    = "refresh"
	ActionLogout     = "logout"
)

// Event is one row of the audit trail.
type Event struct {
	At        time.Time
	SessionID string
	Provider  string
	Action    string
	Outcome   string
	Detail    string
}

// Recorder accepts lifecycle events.
type Recorder interface {
	Record(ctx context.Context, evt Event)
}

// NopRecorder discards everything; used when auditing is disabled.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Event) {}

// PostgresRecorder writes events to a Postgres table through pgx.
type PostgresRecorder struct {
	db    *sql.DB
	table string
}

// NewPostgresRecorder connects to Postgres and ensures the audit table exists.
func NewPostgresRecorder(ctx context.Context, dsn, table string) (*PostgresRecorder, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("audit: DSN is required")
	}
	if strings.TrimSpace(table) == "" {
		table = "oauth_audit"
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}

	r := &PostgresRecorder{db: db, table: table}
	if err = r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying database connection.
func (r *PostgresRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRecorder) ensureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		at TIMESTAMPTZ NOT NULL,
		session_id TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	)`, quoteIdentifier(r.table))
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("audit: create table: %w", err)
	}
	return nil
}

// Record implements Recorder. Insert failures are logged, not propagated.
func (r *PostgresRecorder) Record(ctx context.Context, evt Event) {
	if r == nil || r.db == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (at, session_id, provider, action, outcome, detail) VALUES ($1, $2, $3, $4, $5, $6)",
		quoteIdentifier(r.table),
	)
	if _, err := r.db.ExecContext(ctx, query, evt.At, evt.SessionID, evt.Provider, evt.Action, evt.Outcome, evt.Detail); err != nil {
		log.WithFields(log.Fields{
			"provider": evt.Provider,
			"error":    err,
		}).Warn("audit insert failed")
	}
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
