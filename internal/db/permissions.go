package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/myplayplanet/backend/internal/model"
)

func (db *Postgres) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id FROM permissions ORDER BY id`)
	if err != nil {
		return nil, translate(err)
	}
	return collectPermissions(rows)
}

// CreatePermissions inserts the given permission records in one batch.
func (db *Postgres) CreatePermissions(ctx context.Context, permissions []model.Permission) error {
	if len(permissions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range permissions {
		batch.Queue(`INSERT INTO permissions (id, created_at) VALUES ($1, NOW()) ON CONFLICT (id) DO NOTHING`, string(p))
	}
	return translate(db.Pool.SendBatch(ctx, batch).Close())
}

// HasPermission asks whether the account -has-> permission edge exists. The
// query always yields one row.
func (db *Postgres) HasPermission(ctx context.Context, account model.ID, permission model.Permission) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM account_permissions
			WHERE account_id = $1 AND permission_id = $2
		)
	`
	var granted bool
	if err := db.Pool.QueryRow(ctx, query, account.Key, string(permission)).Scan(&granted); err != nil {
		return false, translate(err)
	}
	return granted, nil
}

// GrantPermission creates the edge; granting twice keeps a single edge.
func (db *Postgres) GrantPermission(ctx context.Context, account model.ID, permission model.Permission) error {
	query := `
		INSERT INTO account_permissions (account_id, permission_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account_id, permission_id) DO NOTHING
	`
	_, err := db.Pool.Exec(ctx, query, account.Key, string(permission))
	return translate(err)
}

func (db *Postgres) AccountPermissions(ctx context.Context, account model.ID) ([]model.Permission, error) {
	query := `
		SELECT permission_id
		FROM account_permissions
		WHERE account_id = $1
		ORDER BY permission_id
	`
	rows, err := db.Pool.Query(ctx, query, account.Key)
	if err != nil {
		return nil, translate(err)
	}
	return collectPermissions(rows)
}

func collectPermissions(rows pgx.Rows) ([]model.Permission, error) {
	defer rows.Close()

	list := []model.Permission{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		list = append(list, model.Permission(id))
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return list, nil
}
