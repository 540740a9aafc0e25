package cognito

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Client is the slice of the Cognito user pool API the session code needs.
type Client interface {
	SignUp(ctx context.Context, input SignUpInput) (SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, input ConfirmSignUpInput) error
	Login(ctx context.Context, input LoginInput) (AuthOutput, error)
	RefreshTokens(ctx context.Context, input RefreshInput) (AuthOutput, error)
	GlobalSignOut(ctx context.Context, accessToken string) error
}

type SignUpInput struct {
	Email    string
	Password string
}

type SignUpOutput struct {
	UserSub      string
	Confirmed    bool
	CodeDelivery string // e.g. "EMAIL"
}

type ConfirmSignUpInput struct {
	Email string
	Code  string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthOutput holds the tokens from a successful InitiateAuth. RefreshToken
// is empty on a refresh; Cognito does not rotate it.
type AuthOutput struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int32
}

type RefreshInput struct {
	Email        string
	RefreshToken string
}

// Claims are the identity fields read from an ID token.
type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// ParseIDToken decodes the payload of a token Cognito just issued to us.
// The signature is not checked; tokens arriving from outside go through
// the JWKS-verifying middleware instead.
func ParseIDToken(idToken string) (Claims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("invalid JWT format")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return Claims{}, fmt.Errorf("failed to parse JWT claims: %w", err)
	}
	if c.Sub == "" {
		return Claims{}, fmt.Errorf("sub claim not found in JWT")
	}
	return c, nil
}
