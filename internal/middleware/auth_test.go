package middleware_test

import (
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jaekwang-park/tasksync/internal/middleware"
)

const (
	testIssuer   = "https://cognito-idp.ap-northeast-1.amazonaws.com/pool-1"
	testClientID = "client-1"
	testKid      = "jwt-test-kid"
)

func signedToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// ownerEcho responds 200 and records the resolved owner.
func ownerEcho(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = middleware.GetOwnerID(r)
		w.WriteHeader(http.StatusOK)
	})
}

func newJWTAuth(t *testing.T, key *rsa.PrivateKey) *middleware.Auth {
	t.Helper()
	srv, _ := countingJWKS(t, jwksBody(t, testKid, key))
	auth, err := middleware.NewAuth(middleware.AuthConfig{
		JWKSClient:  middleware.NewJWKSClient(srv.URL),
		Issuer:      testIssuer,
		AppClientID: testClientID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return auth
}

func TestNewAuth_RequiresJWKSOutsideDevMode(t *testing.T) {
	if _, err := middleware.NewAuth(middleware.AuthConfig{}); err == nil {
		t.Error("expected error without JWKS client")
	}
	if _, err := middleware.NewAuth(middleware.AuthConfig{DevMode: true}); err != nil {
		t.Errorf("dev mode should not need JWKS: %v", err)
	}
}

func TestAuth_DevMode(t *testing.T) {
	auth, _ := middleware.NewAuth(middleware.AuthConfig{DevMode: true})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantOwner  string
	}{
		{"with header", "/api/v1/tasks", "owner-1", http.StatusOK, "owner-1"},
		{"without header", "/api/v1/tasks", "", http.StatusUnauthorized, ""},
		{"health skips auth", "/health", "", http.StatusOK, ""},
		{"auth routes skip auth", "/api/v1/auth/login", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(middleware.OwnerHeader, tt.header)
			}
			w := httptest.NewRecorder()

			auth.Middleware(ownerEcho(&got)).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got != tt.wantOwner {
				t.Errorf("owner = %q, want %q", got, tt.wantOwner)
			}
		})
	}
}

func TestAuth_JWT(t *testing.T) {
	key := generateKey(t)
	other := generateKey(t)
	auth := newJWTAuth(t, key)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantOwner  string
	}{
		{
			name: "id token",
			header: "Bearer " + signedToken(t, key, testKid, jwt.MapClaims{
				"sub": "sub-1", "iss": testIssuer, "aud": testClientID, "exp": exp, "token_use": "id",
			}),
			wantStatus: http.StatusOK,
			wantOwner:  "sub-1",
		},
		{
			name: "access token",
			header: "Bearer " + signedToken(t, key, testKid, jwt.MapClaims{
				"sub": "sub-2", "iss": testIssuer, "client_id": testClientID, "exp": exp, "token_use": "access",
			}),
			wantStatus: http.StatusOK,
			wantOwner:  "sub-2",
		},
		{
			name: "access token for another client",
			header: "Bearer " + signedToken(t, key, testKid, jwt.MapClaims{
				"sub": "sub-2", "iss": testIssuer, "client_id": "other", "exp": exp, "token_use": "access",
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong audience",
			header: "Bearer " + signedToken(t, key, testKid, jwt.MapClaims{
				"sub": "sub-1", "iss": testIssuer, "aud": "other", "exp": exp,
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			header: "Bearer " + signedToken(t, key, testKid, jwt.MapClaims{
				"sub": "sub-1", "iss": "https://wrong-issuer.example.com", "aud": testClientID, "exp": exp,
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired",
			header: "Bearer " + signedToken(t, key, testKid, jwt.MapClaims{
				"sub": "sub-1", "iss": testIssuer, "aud": testClientID, "exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "no expiry",
			header: "Bearer " + signedToken(t, key, testKid, jwt.MapClaims{
				"sub": "sub-1", "iss": testIssuer, "aud": testClientID,
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "signed by unknown key",
			header: "Bearer " + signedToken(t, other, testKid, jwt.MapClaims{
				"sub": "sub-1", "iss": testIssuer, "aud": testClientID, "exp": exp,
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing sub",
			header: "Bearer " + signedToken(t, key, testKid, jwt.MapClaims{
				"iss": testIssuer, "aud": testClientID, "exp": exp,
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			auth.Middleware(ownerEcho(&got)).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d (body: %s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if got != tt.wantOwner {
				t.Errorf("owner = %q, want %q", got, tt.wantOwner)
			}
		})
	}
}

func TestAuth_JWT_IgnoresDevHeader(t *testing.T) {
	auth := newJWTAuth(t, generateKey(t))

	var got string
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set(middleware.OwnerHeader, "spoofed")
	w := httptest.NewRecorder()

	auth.Middleware(ownerEcho(&got)).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized || got != "" {
		t.Errorf("dev header accepted outside dev mode: status %d owner %q", w.Code, got)
	}
}

func TestCognitoURLs(t *testing.T) {
	if got := middleware.CognitoIssuer("ap-northeast-1", "pool-1"); got != testIssuer {
		t.Errorf("issuer = %q", got)
	}
	if got := middleware.CognitoJWKSURL("ap-northeast-1", "pool-1"); got != testIssuer+"/.well-known/jwks.json" {
		t.Errorf("jwks url = %q", got)
	}
}
