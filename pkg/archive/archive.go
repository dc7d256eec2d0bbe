// Package archive persists finalized engagement reports to Postgres for
// later analysis. The archive is optional; when no database is configured
// the gateway keeps reports in session state only.
package archive

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/decoy-ai/decoyd/pkg/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS engagement_reports (
	id UUID PRIMARY KEY,
	session_id TEXT NOT NULL,
	scam_detected BOOLEAN NOT NULL,
	total_messages INT NOT NULL,
	bank_accounts TEXT[] NOT NULL DEFAULT '{}',
	upi_ids TEXT[] NOT NULL DEFAULT '{}',
	phone_numbers TEXT[] NOT NULL DEFAULT '{}',
	phishing_links TEXT[] NOT NULL DEFAULT '{}',
	suspicious_keywords TEXT[] NOT NULL DEFAULT '{}',
	agent_notes TEXT NOT NULL DEFAULT '',
	callback_delivered BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS engagement_reports_session_idx ON engagement_reports (session_id);
`

// Archive writes engagement reports to Postgres.
type Archive struct {
	pool *pgxpool.Pool
}

// New connects to the database and ensures the reports table exists.
func New(ctx context.Context, databaseURL string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// Close releases the connection pool. Safe on a nil receiver.
func (a *Archive) Close() {
	if a == nil || a.pool == nil {
		return
	}
	a.pool.Close()
}

// SaveReport inserts one finalized session report. A nil *Archive is valid
// and does nothing, so callers never branch on whether archiving is on.
func (a *Archive) SaveReport(ctx context.Context, st *session.State, callbackDelivered bool) error {
	if a == nil || a.pool == nil {
		return nil
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO engagement_reports
			(id, session_id, scam_detected, total_messages,
			 bank_accounts, upi_ids, phone_numbers, phishing_links, suspicious_keywords,
			 agent_notes, callback_delivered)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New(), st.SessionID, st.ScamDetected, st.TotalMessages,
		st.Intelligence.BankAccounts, st.Intelligence.UPIIDs,
		st.Intelligence.PhoneNumbers, st.Intelligence.PhishingLinks,
		st.Intelligence.SuspiciousKeywords,
		st.AgentNotes, callbackDelivered,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}
