package service

import (
	"context"

	"github.com/myplayplanet/backend/internal/model"
)

// AccountStore persists accounts. Implemented by *db.Postgres and
// *memory.Store; lookups of unknown records return db.ErrNotFound.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id model.ID) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	UpdateAccount(ctx context.Context, account *model.Account) error
}

type SessionStore interface {
	// ReplaceSession removes every session of session.Target and stores
	// session in one step.
	ReplaceSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	GetSessionByTarget(ctx context.Context, target model.Target) (*model.Session, error)
	// RotateSession overwrites the stored session only while its refresh
	// token still equals previousToken; otherwise it returns db.ErrNotFound.
	RotateSession(ctx context.Context, session *model.Session, previousToken string) error
	DeleteSession(ctx context.Context, id string) error
}

type PermissionStore interface {
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	CreatePermissions(ctx context.Context, permissions []model.Permission) error
	HasPermission(ctx context.Context, account model.ID, permission model.Permission) (bool, error)
	GrantPermission(ctx context.Context, account model.ID, permission model.Permission) error
	AccountPermissions(ctx context.Context, account model.ID) ([]model.Permission, error)
}

// Store is everything the services persist.
type Store interface {
	AccountStore
	SessionStore
	PermissionStore
}
