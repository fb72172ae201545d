package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authWithToken(t *testing.T, token string) *Auth {
	t.Helper()
	hash, err := HashAdminToken(token)
	if err != nil {
		t.Fatalf("HashAdminToken: %v", err)
	}
	cfg := DefaultServerConfig()
	cfg.Security.AdminTokenHash = hash
	return NewAuth(cfg)
}

func TestAuthenticateRequestHeaderToken(t *testing.T) {
	auth := authWithToken(t, "s3cret")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil)
	r.Header.Set("X-Admin-Token", "s3cret")
	if err := auth.AuthenticateRequest(r); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil)
	r.Header.Set("X-Admin-Token", "wrong")
	if err := auth.AuthenticateRequest(r); err == nil {
		t.Fatalf("wrong token accepted")
	}
}

func TestAuthenticateRequestBearer(t *testing.T) {
	auth := authWithToken(t, "s3cret")
	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	if err := auth.AuthenticateRequest(r); err != nil {
		t.Fatalf("bearer token rejected: %v", err)
	}
}

func TestAuthenticateRequestNotConfigured(t *testing.T) {
	auth := NewAuth(DefaultServerConfig())
	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil)
	r.Header.Set("X-Admin-Token", "anything")
	if err := auth.AuthenticateRequest(r); err == nil {
		t.Fatalf("unconfigured admin hash must deny everything")
	}
}

func TestRequireAdminMiddleware(t *testing.T) {
	auth := authWithToken(t, "s3cret")
	handler := auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Admin-Token", "s3cret")
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
}
