package cognito

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("cognito user pool is not configured")

// Unconfigured stands in for a Client when no app client id is set. Every
// account call fails; sign out succeeds so local logout still works.
type Unconfigured struct{}

func (Unconfigured) SignUp(context.Context, SignUpInput) (SignUpOutput, error) {
	return SignUpOutput{}, ErrNotConfigured
}

func (Unconfigured) ConfirmSignUp(context.Context, ConfirmSignUpInput) error {
	return ErrNotConfigured
}

func (Unconfigured) Login(context.Context, LoginInput) (AuthOutput, error) {
	return AuthOutput{}, ErrNotConfigured
}

func (Unconfigured) RefreshTokens(context.Context, RefreshInput) (AuthOutput, error) {
	return AuthOutput{}, ErrNotConfigured
}

func (Unconfigured) GlobalSignOut(context.Context, string) error {
	return nil
}
