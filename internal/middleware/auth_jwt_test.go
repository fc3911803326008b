package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
)

func TestAuthJWTValidToken(t *testing.T) {
	secret := "test-secret"
	token, err := SignToken(secret, "11111111-1111-1111-1111-111111111111", domain.UserRoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var got domain.Principal
	handler := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.UserID != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("unexpected user id %q", got.UserID)
	}
	if !got.IsAdmin() {
		t.Fatalf("expected admin principal")
	}
}

func TestAuthJWTRejections(t *testing.T) {
	secret := "test-secret"
	expired, err := SignToken(secret, "u1", domain.UserRoleUser, -time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	wrongKey, err := SignToken("other-secret", "u1", domain.UserRoleUser, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not.a.token"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong key", header: "Bearer " + wrongKey},
	}

	handler := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestVerifyTokenDefaultsRole(t *testing.T) {
	secret := "s"
	token, err := SignToken(secret, "u2", "", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	claims, err := VerifyToken(secret, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "u2" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}
