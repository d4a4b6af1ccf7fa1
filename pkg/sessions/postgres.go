package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the session store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps sessions in the user_sessions table.
type PostgresStore struct {
	dbPool Querier
}

func NewPostgresStore(dbPool Querier) *PostgresStore {
	return &PostgresStore{dbPool: dbPool}
}

// EnsureSchema creates the session table if missing. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, dbPool Querier) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS user_sessions (
  id text PRIMARY KEY,
  subject text NOT NULL DEFAULT '',
  access_token text NOT NULL DEFAULT '',
  refresh_token text NOT NULL DEFAULT '',
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT id, subject, access_token, refresh_token, updated_at FROM user_sessions WHERE id=$1`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.Subject, &s.AccessToken, &s.RefreshToken, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &s, nil
}

func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	_, err := p.dbPool.Exec(ctx, `INSERT INTO user_sessions(id, subject, access_token, refresh_token, updated_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (id) DO UPDATE SET subject=EXCLUDED.subject, access_token=EXCLUDED.access_token,
		  refresh_token=EXCLUDED.refresh_token, updated_at=NOW()`,
		s.ID, s.Subject, s.AccessToken, s.RefreshToken)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.dbPool.Exec(ctx, `DELETE FROM user_sessions WHERE id=$1`, id)
	return err
}
