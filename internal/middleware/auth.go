package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const OwnerHeader = "X-Owner-ID"

type AuthConfig struct {
	DevMode     bool
	JWKSClient  *JWKSClient
	Issuer      string
	AppClientID string
}

// Auth resolves the request's owner id. In dev mode it trusts the
// X-Owner-ID header; otherwise it verifies a Cognito ID or access token and
// uses its sub claim.
type Auth struct {
	cfg AuthConfig
}

func NewAuth(cfg AuthConfig) (*Auth, error) {
	if !cfg.DevMode && cfg.JWKSClient == nil {
		return nil, fmt.Errorf("middleware: JWKSClient is required when DevMode is false")
	}
	return &Auth{cfg: cfg}, nil
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanPath := path.Clean(r.URL.Path)
		if cleanPath == "/health" || strings.HasPrefix(cleanPath, "/api/v1/auth/") {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.DevMode {
			a.handleDevMode(w, r, next)
			return
		}
		a.handleJWT(w, r, next)
	})
}

func (a *Auth) handleDevMode(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ownerID := r.Header.Get(OwnerHeader)
	if ownerID == "" {
		writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", OwnerHeader+" header required in dev mode")
		return
	}
	next.ServeHTTP(w, r.WithContext(SetOwnerID(r.Context(), ownerID)))
}

func (a *Auth) handleJWT(w http.ResponseWriter, r *http.Request, next http.Handler) {
	tokenStr, ok := bearerToken(r)
	if !ok {
		writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "bearer token required")
		return
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid header not found")
		}
		return a.cfg.JWKSClient.GetKey(r.Context(), kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		slog.DebugContext(r.Context(), "token rejected", "error", err)
		writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
		return
	}

	if !a.issuedForClient(claims) {
		writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token was issued for another client")
		return
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sub claim not found")
		return
	}
	next.ServeHTTP(w, r.WithContext(SetOwnerID(r.Context(), sub)))
}

// issuedForClient checks the app client. ID tokens carry it in aud, access
// tokens in client_id.
func (a *Auth) issuedForClient(claims jwt.MapClaims) bool {
	if a.cfg.AppClientID == "" {
		return true
	}
	switch claims["token_use"] {
	case "access":
		clientID, _ := claims["client_id"].(string)
		return clientID == a.cfg.AppClientID
	default:
		aud, err := claims.GetAudience()
		if err != nil {
			return false
		}
		for _, v := range aud {
			if v == a.cfg.AppClientID {
				return true
			}
		}
		return false
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// CognitoJWKSURL returns the JWKS URL for the given Cognito User Pool.
func CognitoJWKSURL(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", region, userPoolID)
}

// CognitoIssuer returns the expected issuer for the given Cognito User Pool.
func CognitoIssuer(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}
