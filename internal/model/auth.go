package model

type LoginRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Token    *string `json:"token"`
}

type RefreshRequest struct {
	SessionID    string `json:"sessionId"`
	RefreshToken string `json:"refreshToken"`
}

type MachineLoginRequest struct {
	Assertion string `json:"assertion"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	OldPassword string  `json:"oldPassword"`
	NewPassword string  `json:"newPassword"`
	Token       *string `json:"token"`
}

type TOTPToggleRequest struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

type TOTPSecretRequest struct {
	Password string  `json:"password"`
	Token    *string `json:"token"`
}

type TOTPProvisioningResponse struct {
	URI string `json:"uri"`
}

type ChangeUsernameRequest struct {
	Username string `json:"username"`
}

type GrantPermissionRequest struct {
	Permission string `json:"permission"`
}

type LinkAccountRequest struct {
	Code string `json:"code"`
}
