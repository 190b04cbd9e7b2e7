package dto

// TokenRequest body para POST /api/auth/token. La llamada se autoriza con la
// cabecera X-API-Key; el token resultante queda atado a un dispositivo (EGS).
type TokenRequest struct {
	OperatorID string `json:"operator_id" validate:"required,max=127"`
	DeviceID   string `json:"device_id" validate:"required,max=127"`
	Role       string `json:"role,omitempty" validate:"omitempty,oneof=operator admin"`
}

// TokenResponse JWT emitido.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // segundos
	DeviceID    string `json:"device_id"`
	Role        string `json:"role"`
}
