package history

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo stores call-history records in Postgres.
//
// Expected schema:
//
//	CREATE TABLE call_history (
//	    call_id         TEXT PRIMARY KEY,
//	    caller_id       TEXT NOT NULL,
//	    recipient_id    TEXT NOT NULL,
//	    conversation_id TEXT NOT NULL DEFAULT '',
//	    final_state     TEXT NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    terminated_at   TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	const q = `
		INSERT INTO call_history
			(call_id, caller_id, recipient_id, conversation_id, final_state, created_at, terminated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (call_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, q,
		rec.CallID, rec.CallerID, rec.RecipientID, rec.ConversationID,
		rec.FinalState, rec.CreatedAt, rec.TerminatedAt)
	if err != nil {
		return fmt.Errorf("history append failed: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Recent(ctx context.Context, limit int) ([]Record, error) {
	const q = `
		SELECT call_id, caller_id, recipient_id, conversation_id, final_state, created_at, terminated_at
		FROM call_history
		ORDER BY terminated_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.CallID, &rec.CallerID, &rec.RecipientID,
			&rec.ConversationID, &rec.FinalState, &rec.CreatedAt, &rec.TerminatedAt); err != nil {
			return nil, fmt.Errorf("history scan failed: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
