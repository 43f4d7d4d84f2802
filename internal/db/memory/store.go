// Package memory is a thread-safe in-process implementation of the account,
// session and permission stores, used for tests and local development
// (STORAGE=memory). It copies records in and out so callers never share
// state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/myplayplanet/backend/internal/db"
	"github.com/myplayplanet/backend/internal/model"
)

type Store struct {
	mu sync.RWMutex

	accounts    map[string]*model.Account // key: account id key
	sessions    map[string]*model.Session // key: session id
	permissions map[model.Permission]struct{}
	grants      map[string]map[model.Permission]struct{} // key: account id key
}

func New() *Store {
	return &Store{
		accounts:    make(map[string]*model.Account),
		sessions:    make(map[string]*model.Session),
		permissions: make(map[model.Permission]struct{}),
		grants:      make(map[string]map[model.Permission]struct{}),
	}
}

func (s *Store) CreateAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(account, ""); err != nil {
		return err
	}
	account.ID = model.NewID(model.TableAccount, uuid.NewString())
	account.CreatedAt = time.Now().UTC()

	s.accounts[account.ID.Key] = cloneAccount(account)
	return nil
}

func (s *Store) GetAccountByID(_ context.Context, id model.ID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id.Key]
	if !ok || id.Table != model.TableAccount {
		return nil, db.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *Store) GetAccountByUsername(_ context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Username == username {
			return cloneAccount(a), nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *Store) UpdateAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID.Key]
	if !ok {
		return db.ErrNotFound
	}
	if err := s.checkUnique(account, account.ID.Key); err != nil {
		return err
	}
	stored := cloneAccount(account)
	stored.CreatedAt = existing.CreatedAt
	s.accounts[account.ID.Key] = stored
	return nil
}

func cloneAccount(a *model.Account) *model.Account {
	out := *a
	if a.UUID != nil {
		linked := *a.UUID
		out.UUID = &linked
	}
	return &out
}

// checkUnique mirrors the unique constraints on accounts.username and
// accounts.uuid.
func (s *Store) checkUnique(account *model.Account, exceptKey string) error {
	for key, a := range s.accounts {
		if key == exceptKey {
			continue
		}
		if a.Username == account.Username {
			return fmt.Errorf("%w: accounts_username_key", db.ErrDuplicate)
		}
		if a.UUID != nil && account.UUID != nil && *a.UUID == *account.UUID {
			return fmt.Errorf("%w: accounts_uuid_key", db.ErrDuplicate)
		}
	}
	return nil
}

func (s *Store) ReplaceSession(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.sessions {
		if existing.Target == session.Target {
			delete(s.sessions, id)
		}
	}
	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *session
	return &out, nil
}

func (s *Store) GetSessionByTarget(_ context.Context, target model.Target) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.Session
	for _, session := range s.sessions {
		if session.Target == target && (found == nil || session.IssuedAt > found.IssuedAt) {
			found = session
		}
	}
	if found == nil {
		return nil, db.ErrNotFound
	}
	out := *found
	return &out, nil
}

func (s *Store) RotateSession(_ context.Context, session *model.Session, previousToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[session.ID]
	if !ok || existing.RefreshToken != previousToken {
		return db.ErrNotFound
	}
	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// SessionCount returns how many sessions are stored.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *Store) ListPermissions(_ context.Context) ([]model.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]model.Permission, 0, len(s.permissions))
	for p := range s.permissions {
		list = append(list, p)
	}
	sortPermissions(list)
	return list, nil
}

func (s *Store) CreatePermissions(_ context.Context, permissions []model.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range permissions {
		s.permissions[p] = struct{}{}
	}
	return nil
}

func (s *Store) HasPermission(_ context.Context, account model.ID, permission model.Permission) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.grants[account.Key][permission]
	return ok, nil
}

func (s *Store) GrantPermission(_ context.Context, account model.ID, permission model.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Key]; !ok {
		return db.ErrNotFound
	}
	if _, ok := s.permissions[permission]; !ok {
		return db.ErrNotFound
	}
	if s.grants[account.Key] == nil {
		s.grants[account.Key] = make(map[model.Permission]struct{})
	}
	s.grants[account.Key][permission] = struct{}{}
	return nil
}

func (s *Store) AccountPermissions(_ context.Context, account model.ID) ([]model.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]model.Permission, 0, len(s.grants[account.Key]))
	for p := range s.grants[account.Key] {
		list = append(list, p)
	}
	sortPermissions(list)
	return list, nil
}

func sortPermissions(list []model.Permission) {
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
}
