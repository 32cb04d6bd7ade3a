package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresDirectory resolves identities from the shared identities table.
//
// Expected schema:
//
//	CREATE TABLE identities (
//	    id           TEXT PRIMARY KEY,
//	    role         TEXT NOT NULL,
//	    display_name TEXT NOT NULL DEFAULT '',
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Resolve(ctx context.Context, identityID string) (Identity, bool, error) {
	if identityID == "" {
		return Identity{}, false, nil
	}

	const q = `SELECT id, role, display_name, created_at FROM identities WHERE id = $1`

	var (
		out     Identity
		rawRole string
	)
	err := d.db.QueryRowContext(ctx, q, identityID).Scan(&out.ID, &rawRole, &out.DisplayName, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("identity lookup failed: %w", err)
	}

	role, ok := ParseRole(rawRole)
	if !ok {
		// A row with an unknown role is treated as corrupt rather than
		// silently mapped to a callable role.
		return Identity{}, false, fmt.Errorf("identity %s has unknown role %q", identityID, rawRole)
	}
	out.Role = role
	return out, true, nil
}
