package model

// TargetKind tells whether a session belongs to a person or an API client.
type TargetKind string

const (
	TargetHuman   TargetKind = "human"
	TargetMachine TargetKind = "machine"
)

// Target is the owner of a session. For humans ID is the account id
// ("account:..."), for machines the configured client id.
type Target struct {
	Kind TargetKind `json:"type"`
	ID   string     `json:"id"`
}

func HumanTarget(account ID) Target {
	return Target{Kind: TargetHuman, ID: account.String()}
}

func MachineTarget(clientID string) Target {
	return Target{Kind: TargetMachine, ID: clientID}
}

// Session is a bearer credential. Timestamps are unix seconds.
type Session struct {
	ID           string `json:"id"`
	Target       Target `json:"target"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
	RefreshToken string `json:"refreshToken"`
	RefreshExp   int64  `json:"refreshExp"`
}

func (s *Session) Ref() ID {
	return NewID(TableSession, s.ID)
}
