package server

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Auth guards the admin audit surface with a single operator token. Only the
// bcrypt hash of the token ever lives in config.
type Auth struct {
	adminHash string
}

func NewAuth(cfg ServerConfig) *Auth {
	return &Auth{adminHash: strings.TrimSpace(cfg.Security.AdminTokenHash)}
}

func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.AuthenticateRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Auth) AuthenticateRequest(r *http.Request) error {
	if a.adminHash == "" {
		return errors.New("admin access not configured")
	}
	token := strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	if token == "" {
		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			token = strings.TrimSpace(authHeader[7:])
		}
	}
	if token == "" {
		return errors.New("no admin token presented")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.adminHash), []byte(token)); err != nil {
		return errors.New("invalid admin token")
	}
	return nil
}

// HashAdminToken produces the config value for security.admin_token_hash.
func HashAdminToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
