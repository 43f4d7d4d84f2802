package client

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/myplayplanet/backend/internal/config"
	"golang.org/x/oauth2"
)

const testIssuer = "https://id.example.test"

func newTokenServer(t *testing.T, idToken string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		body := map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if idToken != "" {
			body["id_token"] = idToken
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, audience, subject string) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign id_token: %v", err)
	}
	return signed
}

func newTestOIDCClient(t *testing.T, key *rsa.PrivateKey, tokenURL string) *OIDCClient {
	t.Helper()

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	verifier := oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: "backend"})
	oauthCfg := &oauth2.Config{
		ClientID:     "backend",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	return newOIDCClient(oauthCfg, verifier)
}

func TestOIDCClientSubject(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tests := []struct {
		name    string
		idToken string
		code    string
		want    string
		wantErr bool
	}{
		{
			name:    "valid",
			idToken: signIDToken(t, key, "backend", "user-42"),
			code:    "good-code",
			want:    "user-42",
		},
		{
			name:    "wrong-audience",
			idToken: signIDToken(t, key, "someone-else", "user-42"),
			code:    "good-code",
			wantErr: true,
		},
		{
			name:    "no-id-token",
			code:    "good-code",
			wantErr: true,
		},
		{
			name:    "bad-code",
			idToken: signIDToken(t, key, "backend", "user-42"),
			code:    "bad-code",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokenServer(t, tt.idToken)
			c := newTestOIDCClient(t, key, srv.URL)

			got, err := c.Subject(context.Background(), tt.code)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got subject %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Subject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewOIDCClientDisabled(t *testing.T) {
	c, err := NewOIDCClient(context.Background(), config.OIDCConfig{})
	if err != nil || c != nil {
		t.Fatalf("expected disabled client, got %v, %v", c, err)
	}

	if _, err := NewOIDCClient(context.Background(), config.OIDCConfig{IssuerURL: testIssuer}); err == nil {
		t.Fatal("missing client id must fail")
	}
}
