package memory

import (
	"context"
	"testing"

	"github.com/myplayplanet/backend/internal/db"
	"github.com/myplayplanet/backend/internal/model"
	"github.com/myplayplanet/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ service.Store = (*Store)(nil)
	_ service.Store = (*db.Postgres)(nil)
)

func TestAccountsAreCopied(t *testing.T) {
	s := New()
	ctx := context.Background()

	account := &model.Account{Username: "alice", Password: "hash"}
	require.NoError(t, s.CreateAccount(ctx, account))
	require.Equal(t, model.TableAccount, account.ID.Table)
	require.False(t, account.CreatedAt.IsZero())

	loaded, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	loaded.Username = "mallory"

	again, err := s.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)

	_, err = s.GetAccountByID(ctx, model.NewID(model.TableSession, account.ID.Key))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestAccountUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, &model.Account{Username: "alice"}))
	assert.ErrorIs(t, s.CreateAccount(ctx, &model.Account{Username: "alice"}), db.ErrDuplicate)

	subject := "ext-1"
	bob := &model.Account{Username: "bob", UUID: &subject}
	require.NoError(t, s.CreateAccount(ctx, bob))

	carol := &model.Account{Username: "carol", UUID: &subject}
	assert.ErrorIs(t, s.CreateAccount(ctx, carol), db.ErrDuplicate)

	bob.Username = "alice"
	assert.ErrorIs(t, s.UpdateAccount(ctx, bob), db.ErrDuplicate)

	ghost := &model.Account{ID: model.NewID(model.TableAccount, "ghost"), Username: "ghost"}
	assert.ErrorIs(t, s.UpdateAccount(ctx, ghost), db.ErrNotFound)
}

func TestReplaceSession(t *testing.T) {
	s := New()
	ctx := context.Background()
	target := model.MachineTarget("importer")

	require.NoError(t, s.ReplaceSession(ctx, &model.Session{ID: "a", Target: target, IssuedAt: 1}))
	require.NoError(t, s.ReplaceSession(ctx, &model.Session{ID: "b", Target: target, IssuedAt: 2}))
	require.NoError(t, s.ReplaceSession(ctx, &model.Session{ID: "c", Target: model.MachineTarget("other")}))

	assert.Equal(t, 2, s.SessionCount())
	_, err := s.GetSession(ctx, "a")
	assert.ErrorIs(t, err, db.ErrNotFound)

	got, err := s.GetSessionByTarget(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	assert.ErrorIs(t, s.RotateSession(ctx, &model.Session{ID: "a"}, ""), db.ErrNotFound)
	require.NoError(t, s.DeleteSession(ctx, "b"))
	require.NoError(t, s.DeleteSession(ctx, "b"))
	assert.Equal(t, 1, s.SessionCount())
}

func TestGrants(t *testing.T) {
	s := New()
	ctx := context.Background()

	account := &model.Account{Username: "alice"}
	require.NoError(t, s.CreateAccount(ctx, account))

	assert.ErrorIs(t, s.GrantPermission(ctx, account.ID, model.NewsCreate), db.ErrNotFound, "permission not created yet")

	require.NoError(t, s.CreatePermissions(ctx, []model.Permission{model.NewsDelete, model.NewsCreate}))
	require.NoError(t, s.GrantPermission(ctx, account.ID, model.NewsDelete))
	require.NoError(t, s.GrantPermission(ctx, account.ID, model.NewsCreate))
	require.NoError(t, s.GrantPermission(ctx, account.ID, model.NewsCreate))

	ok, err := s.HasPermission(ctx, account.ID, model.NewsCreate)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := s.AccountPermissions(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Permission{model.NewsCreate, model.NewsDelete}, list)

	all, err := s.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRotateSessionNeedsCurrentToken(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.ReplaceSession(ctx, &model.Session{ID: "a", Target: model.MachineTarget("importer"), RefreshToken: "t1"}))

	require.NoError(t, s.RotateSession(ctx, &model.Session{ID: "a", RefreshToken: "t2", IssuedAt: 5}, "t1"))
	assert.ErrorIs(t, s.RotateSession(ctx, &model.Session{ID: "a", RefreshToken: "t3"}, "t1"), db.ErrNotFound)

	got, err := s.GetSession(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.RefreshToken)
	assert.Equal(t, int64(5), got.IssuedAt)
}
