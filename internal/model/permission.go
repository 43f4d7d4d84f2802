package model

import (
	"errors"
	"strings"
)

var ErrUnknownPermission = errors.New("unknown permission")

// Permission is a capability name such as "news.create". It is stored as the
// key of a permission record and serialized as the bare name.
type Permission string

// Default gates routes that only need a session; it always authorizes.
const Default Permission = "none"

const (
	NewsCreate Permission = "news.create"
	NewsUpdate Permission = "news.update"
	NewsDelete Permission = "news.delete"
	NewsGetAll Permission = "news.get.all"

	EventCreate Permission = "event.create"
	EventUpdate Permission = "event.update"
	EventDelete Permission = "event.delete"

	EventGroupCreate Permission = "event.group.create"
	EventGroupUpdate Permission = "event.group.update"
	EventGroupDelete Permission = "event.group.delete"

	EventFightCreate Permission = "event.fight.create"
	EventFightUpdate Permission = "event.fight.update"
	EventFightDelete Permission = "event.fight.delete"

	AccountPermissionGet   Permission = "account.permission.get"
	AccountPermissionGrant Permission = "account.permission.grant"
)

var catalog = []Permission{
	NewsCreate, NewsUpdate, NewsDelete, NewsGetAll,
	EventCreate, EventUpdate, EventDelete,
	EventGroupCreate, EventGroupUpdate, EventGroupDelete,
	EventFightCreate, EventFightUpdate, EventFightDelete,
	AccountPermissionGet, AccountPermissionGrant,
}

var catalogIndex = func() map[Permission]struct{} {
	index := make(map[Permission]struct{}, len(catalog))
	for _, p := range catalog {
		index[p] = struct{}{}
	}
	return index
}()

// Permissions returns a copy of the grantable catalog. Default is not part of it.
func Permissions() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// ParsePermission accepts "news.create" as well as "permission:news.create".
func ParsePermission(raw string) (Permission, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ":") {
		id, err := ParseID(TablePermission, raw)
		if err != nil {
			return "", err
		}
		raw = id.Key
	}
	p := Permission(raw)
	if _, ok := catalogIndex[p]; !ok {
		return "", ErrUnknownPermission
	}
	return p, nil
}

func (p Permission) ID() ID {
	return NewID(TablePermission, string(p))
}

func (p Permission) String() string {
	return string(p)
}
