package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	TableAccount    = "account"
	TableSession    = "session"
	TablePermission = "permission"
)

var (
	ErrInvalidID     = errors.New("invalid id")
	ErrTableMismatch = errors.New("id references another table")
)

// ID references a persisted record as table:key.
type ID struct {
	Table string
	Key   string
}

func NewID(table, key string) ID {
	return ID{Table: table, Key: key}
}

// ParseID parses a client supplied "table:key" and refuses ids that belong
// to any table other than the expected one.
func ParseID(table, raw string) (ID, error) {
	id, err := splitID(raw)
	if err != nil {
		return ID{}, err
	}
	if id.Table != table {
		return ID{}, fmt.Errorf("%w: expected %s", ErrTableMismatch, table)
	}
	return id, nil
}

func splitID(raw string) (ID, error) {
	table, key, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || table == "" || key == "" || strings.Contains(key, ":") {
		return ID{}, ErrInvalidID
	}
	return ID{Table: table, Key: key}, nil
}

func (id ID) String() string {
	return id.Table + ":" + id.Key
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidID
	}
	parsed, err := splitID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
