package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/myplayplanet/backend/internal/config"
)

func TestBuildPostgresURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PostgresConfig
		want    string
		wantErr bool
	}{
		{
			name: "database-url-wins",
			cfg:  config.PostgresConfig{DatabaseURL: "postgres://x@y/z", User: "ignored"},
			want: "postgres://x@y/z",
		},
		{
			name: "parts",
			cfg:  config.PostgresConfig{Host: "db", Port: "5433", User: "app", Password: "p@ss", Database: "auth", SSLMode: "require"},
			want: "postgres://app:p%40ss@db:5433/auth?sslmode=require",
		},
		{
			name: "no-password",
			cfg:  config.PostgresConfig{Host: "localhost", Port: "5432", User: "app", Database: "auth", SSLMode: "disable"},
			want: "postgres://app@localhost:5432/auth?sslmode=disable",
		},
		{
			name:    "missing",
			cfg:     config.PostgresConfig{Host: "localhost", Port: "5432"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildPostgresURL(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("buildPostgresURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	if translate(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if !IsNoRows(translate(pgx.ErrNoRows)) {
		t.Fatal("pgx.ErrNoRows must map to ErrNotFound")
	}
	dup := translate(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"}))
	if !IsDuplicate(dup) {
		t.Fatalf("unique violation must map to ErrDuplicate, got %v", dup)
	}
	fk := translate(&pgconn.PgError{Code: "23503", ConstraintName: "account_permissions_account_id_fkey"})
	if !IsNoRows(fk) {
		t.Fatalf("foreign key violation must map to ErrNotFound, got %v", fk)
	}
	other := errors.New("boom")
	if translate(other) != other {
		t.Fatal("unrelated errors pass through")
	}
}
