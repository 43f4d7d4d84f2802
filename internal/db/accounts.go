package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/myplayplanet/backend/internal/model"
)

const accountColumns = `id, username, uuid, password, secret, nonce, totp, locked, created_at`

// CreateAccount assigns a new id and inserts the account.
func (db *Postgres) CreateAccount(ctx context.Context, account *model.Account) error {
	account.ID = model.NewID(model.TableAccount, uuid.NewString())

	query := `
		INSERT INTO accounts (id, username, uuid, password, secret, nonce, totp, locked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`
	err := db.Pool.QueryRow(ctx, query,
		account.ID.Key,
		account.Username,
		account.UUID,
		account.Password,
		account.Secret,
		account.Nonce,
		account.TOTP,
		account.Locked,
	).Scan(&account.CreatedAt)
	return translate(err)
}

func (db *Postgres) GetAccountByID(ctx context.Context, id model.ID) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(db.Pool.QueryRow(ctx, query, id.Key))
}

func (db *Postgres) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccount(db.Pool.QueryRow(ctx, query, username))
}

// UpdateAccount writes every mutable column of the account.
func (db *Postgres) UpdateAccount(ctx context.Context, account *model.Account) error {
	query := `
		UPDATE accounts
		SET username = $2, uuid = $3, password = $4, secret = $5, nonce = $6, totp = $7, locked = $8
		WHERE id = $1
	`
	tag, err := db.Pool.Exec(ctx, query,
		account.ID.Key,
		account.Username,
		account.UUID,
		account.Password,
		account.Secret,
		account.Nonce,
		account.TOTP,
		account.Locked,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		account   model.Account
		key       string
		createdAt time.Time
	)
	err := row.Scan(
		&key,
		&account.Username,
		&account.UUID,
		&account.Password,
		&account.Secret,
		&account.Nonce,
		&account.TOTP,
		&account.Locked,
		&createdAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	account.ID = model.NewID(model.TableAccount, key)
	account.CreatedAt = createdAt
	return &account, nil
}
