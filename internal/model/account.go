package model

import "time"

// Account is the stored identity record. Password holds the PHC hash of the
// password-derived key, Secret the sealed TOTP secret and Nonce the salt of
// the key derivation.
type Account struct {
	ID        ID
	Username  string
	UUID      *string
	Password  string
	Secret    string
	Nonce     string
	TOTP      bool
	Locked    bool
	CreatedAt time.Time
}

// ProtectedAccount is the public view of an account.
type ProtectedAccount struct {
	ID        ID        `json:"id" swaggertype:"string"`
	Username  string    `json:"username"`
	UUID      *string   `json:"uuid"`
	TOTP      bool      `json:"totp"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *Account) Protected() ProtectedAccount {
	return ProtectedAccount{
		ID:        a.ID,
		Username:  a.Username,
		UUID:      a.UUID,
		TOTP:      a.TOTP,
		Locked:    a.Locked,
		CreatedAt: a.CreatedAt,
	}
}
