package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/myplayplanet/backend/internal/db"
	"github.com/myplayplanet/backend/internal/model"
)

// Authorizer answers capability checks for human accounts and machine
// clients.
type Authorizer struct {
	store    PermissionStore
	machines map[string]map[model.Permission]struct{}
	logger   *slog.Logger
}

// NewAuthorizer validates the permission lists configured for machine
// clients against the catalog.
func NewAuthorizer(store PermissionStore, machineClients map[string][]string, logger *slog.Logger) (*Authorizer, error) {
	machines := make(map[string]map[model.Permission]struct{}, len(machineClients))
	for client, names := range machineClients {
		set := make(map[model.Permission]struct{}, len(names))
		for _, name := range names {
			p, err := model.ParsePermission(name)
			if err != nil {
				return nil, fmt.Errorf("%w: MACHINE_CLIENTS %s: %q: %v", ErrMisconfigured, client, name, err)
			}
			set[p] = struct{}{}
		}
		machines[client] = set
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{store: store, machines: machines, logger: logger}, nil
}

// InitPermissions stores the catalog entries that are not persisted yet.
// Running it again is a no-op.
func (a *Authorizer) InitPermissions(ctx context.Context) error {
	existing, err := a.store.ListPermissions(ctx)
	if err != nil {
		return fmt.Errorf("list permissions: %w", err)
	}
	have := make(map[model.Permission]struct{}, len(existing))
	for _, p := range existing {
		have[p] = struct{}{}
	}

	var missing []model.Permission
	for _, p := range model.Permissions() {
		if _, ok := have[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err := a.store.CreatePermissions(ctx, missing); err != nil {
		return fmt.Errorf("create permissions: %w", err)
	}

	a.logger.Info("permissions initialized", "created", len(missing))
	return nil
}

// HasPermission succeeds when the account holds permission. Default always
// succeeds without a lookup.
func (a *Authorizer) HasPermission(ctx context.Context, account model.ID, permission model.Permission) error {
	if permission == model.Default {
		return nil
	}
	granted, err := a.store.HasPermission(ctx, account, permission)
	if err != nil {
		return fmt.Errorf("%w: permission check: %v", ErrInternal, err)
	}
	if !granted {
		return ErrUnauthorized
	}
	return nil
}

// HasMachinePermission checks the permission list configured for clientID.
func (a *Authorizer) HasMachinePermission(clientID string, permission model.Permission) error {
	if permission == model.Default {
		return nil
	}
	if _, ok := a.machines[clientID][permission]; !ok {
		return ErrUnauthorized
	}
	return nil
}

// IsMachineClient reports whether clientID is configured.
func (a *Authorizer) IsMachineClient(clientID string) bool {
	_, ok := a.machines[clientID]
	return ok
}

// GrantPermission gives the account permission; granting twice is fine.
func (a *Authorizer) GrantPermission(ctx context.Context, account model.ID, permission model.Permission) error {
	if permission == model.Default {
		return badRequest("%s cannot be granted", model.Default)
	}
	if err := a.store.GrantPermission(ctx, account, permission); err != nil {
		if db.IsNoRows(err) {
			return badRequest("unknown account or permission")
		}
		return fmt.Errorf("%w: grant permission: %v", ErrInternal, err)
	}

	a.logger.Info("permission granted", "account", account.String(), "permission", permission)
	return nil
}

// Permissions lists what the account has been granted.
func (a *Authorizer) Permissions(ctx context.Context, account model.ID) ([]model.Permission, error) {
	list, err := a.store.AccountPermissions(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%w: list permissions: %v", ErrInternal, err)
	}
	return list, nil
}
