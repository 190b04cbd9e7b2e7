// Package auth emite los JWT de los operadores del servicio. No hay tabla de usuarios:
// la emisión se autoriza con una clave de arranque (AUTH_API_KEY), en texto o bcrypt.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/zatca-einvoice/internal/application/dto"
	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/pkg/jwt"
)

// ErrDisabled la clave de arranque no está configurada.
var ErrDisabled = errors.New("auth: emisión de tokens deshabilitada (AUTH_API_KEY vacía)")

// Config configuración para generación de tokens.
type Config struct {
	Secret     string
	ExpMinutes int
	Issuer     string
	APIKey     string // texto plano o hash bcrypt ($2a$/$2b$/$2y$)
}

// TokenUseCase emite tokens de operador atados a un dispositivo (EGS).
type TokenUseCase struct {
	cfg Config
}

// NewTokenUseCase construye el caso de uso de auth.
func NewTokenUseCase(cfg Config) *TokenUseCase {
	return &TokenUseCase{cfg: cfg}
}

// IssueToken valida la clave y devuelve un JWT para el operador y dispositivo pedidos.
// Retorna ErrDisabled si no hay clave configurada y domain.ErrUnauthorized si no coincide.
func (uc *TokenUseCase) IssueToken(apiKey string, in dto.TokenRequest) (*dto.TokenResponse, error) {
	if uc.cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	if !uc.checkKey(apiKey) {
		return nil, domain.ErrUnauthorized
	}
	if err := dto.Validate(&in); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = jwt.RoleOperator
	}
	tok, err := jwt.Generate(uc.cfg.Secret, in.OperatorID, in.DeviceID, role, uc.cfg.Issuer, uc.cfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   uc.cfg.ExpMinutes * 60,
		DeviceID:    in.DeviceID,
		Role:        role,
	}, nil
}

func (uc *TokenUseCase) checkKey(key string) bool {
	if key == "" {
		return false
	}
	if isBcryptHash(uc.cfg.APIKey) {
		return bcrypt.CompareHashAndPassword([]byte(uc.cfg.APIKey), []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(uc.cfg.APIKey)) == 1
}

// HashAPIKey devuelve el hash bcrypt de la clave, apto para AUTH_API_KEY.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
