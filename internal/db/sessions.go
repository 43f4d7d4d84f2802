package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/myplayplanet/backend/internal/model"
)

const sessionColumns = `id, target_type, target_id, iat, exp, refresh_token, refresh_exp`

// ReplaceSession ends every session of the target and stores the new one in
// a single statement. Two concurrent calls for one target can still both
// insert; the window is one statement wide.
func (db *Postgres) ReplaceSession(ctx context.Context, session *model.Session) error {
	query := `
		WITH ended AS (
			DELETE FROM sessions WHERE target_type = $2 AND target_id = $3
		)
		INSERT INTO sessions (id, target_type, target_id, iat, exp, refresh_token, refresh_exp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.Pool.Exec(ctx, query,
		session.ID,
		string(session.Target.Kind),
		session.Target.ID,
		session.IssuedAt,
		session.ExpiresAt,
		session.RefreshToken,
		session.RefreshExp,
	)
	return translate(err)
}

func (db *Postgres) GetSession(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(db.Pool.QueryRow(ctx, query, id))
}

func (db *Postgres) GetSessionByTarget(ctx context.Context, target model.Target) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE target_type = $1 AND target_id = $2
		ORDER BY iat DESC
		LIMIT 1
	`
	return scanSession(db.Pool.QueryRow(ctx, query, string(target.Kind), target.ID))
}

// RotateSession matches on the previous refresh token so a token can be
// redeemed once.
func (db *Postgres) RotateSession(ctx context.Context, session *model.Session, previousToken string) error {
	query := `
		UPDATE sessions
		SET iat = $2, exp = $3, refresh_token = $4, refresh_exp = $5
		WHERE id = $1 AND refresh_token = $6
	`
	tag, err := db.Pool.Exec(ctx, query,
		session.ID,
		session.IssuedAt,
		session.ExpiresAt,
		session.RefreshToken,
		session.RefreshExp,
		previousToken,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession is a no-op for unknown ids.
func (db *Postgres) DeleteSession(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return translate(err)
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var (
		session model.Session
		kind    string
	)
	err := row.Scan(
		&session.ID,
		&kind,
		&session.Target.ID,
		&session.IssuedAt,
		&session.ExpiresAt,
		&session.RefreshToken,
		&session.RefreshExp,
	)
	if err != nil {
		return nil, translate(err)
	}
	session.Target.Kind = model.TargetKind(kind)
	return &session, nil
}
