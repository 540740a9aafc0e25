package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaekwang-park/tasksync/internal/cognito"
	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/repository"
	"github.com/jaekwang-park/tasksync/internal/syncer"
)

const sessionKey = "session"

// AuthService signs the device in and out of the user pool and keeps the
// resulting session in the local key-value store.
type AuthService struct {
	cognitoClient cognito.Client
	kv            repository.KeyValueStore
	tasks         repository.TaskRepository
	logger        *slog.Logger
	now           func() time.Time
}

func NewAuthService(
	cognitoClient cognito.Client,
	kv repository.KeyValueStore,
	tasks repository.TaskRepository,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		cognitoClient: cognitoClient,
		kv:            kv,
		tasks:         tasks,
		logger:        logger,
		now:           time.Now,
	}
}

type SignUpInput struct {
	Email    string
	Password string
}

type SignUpOutput struct {
	UserSub      string `json:"user_sub"`
	Confirmed    bool   `json:"confirmed"`
	CodeDelivery string `json:"code_delivery"`
}

func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (SignUpOutput, error) {
	if input.Email == "" {
		return SignUpOutput{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if input.Password == "" {
		return SignUpOutput{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	out, err := s.cognitoClient.SignUp(ctx, cognito.SignUpInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		return SignUpOutput{}, err
	}
	return SignUpOutput{
		UserSub:      out.UserSub,
		Confirmed:    out.Confirmed,
		CodeDelivery: out.CodeDelivery,
	}, nil
}

func (s *AuthService) ConfirmSignUp(ctx context.Context, email, code string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	return s.cognitoClient.ConfirmSignUp(ctx, cognito.ConfirmSignUpInput{Email: email, Code: code})
}

// Login authenticates against the user pool and persists the session. The
// owner id is the sub claim of the freshly issued ID token.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.Session, error) {
	if email == "" {
		return model.Session{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if password == "" {
		return model.Session{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	out, err := s.cognitoClient.Login(ctx, cognito.LoginInput{Email: email, Password: password})
	if err != nil {
		return model.Session{}, err
	}

	claims, err := cognito.ParseIDToken(out.IDToken)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to extract sub from id token: %w", err)
	}

	sess := model.Session{
		OwnerID:      claims.Sub,
		Email:        email,
		IDToken:      out.IDToken,
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    s.expiry(out.ExpiresIn),
	}
	if err := repository.PutJSON(ctx, s.kv, sessionKey, sess); err != nil {
		return model.Session{}, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("signed in", "owner_id", sess.OwnerID)
	return sess, nil
}

// Refresh exchanges the stored refresh token for new access and ID tokens.
func (s *AuthService) Refresh(ctx context.Context) (model.Session, error) {
	sess, err := s.CurrentSession(ctx)
	if err != nil {
		return model.Session{}, err
	}
	if sess.RefreshToken == "" {
		return model.Session{}, fmt.Errorf("%w: session has no refresh token", ErrNoSession)
	}

	out, err := s.cognitoClient.RefreshTokens(ctx, cognito.RefreshInput{
		Email:        sess.Email,
		RefreshToken: sess.RefreshToken,
	})
	if err != nil {
		return model.Session{}, err
	}

	sess.IDToken = out.IDToken
	sess.AccessToken = out.AccessToken
	if out.RefreshToken != "" {
		sess.RefreshToken = out.RefreshToken
	}
	sess.ExpiresAt = s.expiry(out.ExpiresIn)

	if err := repository.PutJSON(ctx, s.kv, sessionKey, sess); err != nil {
		return model.Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// CurrentSession returns the persisted session, expired or not.
func (s *AuthService) CurrentSession(ctx context.Context) (model.Session, error) {
	var sess model.Session
	err := repository.GetJSON(ctx, s.kv, sessionKey, &sess)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Session{}, ErrNoSession
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// Logout revokes the tokens when it can and wipes every local trace of the
// account: tasks, queued mutations, the sync checkpoint and the session.
// Revocation failures are logged, not returned, so logout works offline.
func (s *AuthService) Logout(ctx context.Context) error {
	sess, err := s.CurrentSession(ctx)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}

	if sess.AccessToken != "" {
		if err := s.cognitoClient.GlobalSignOut(ctx, sess.AccessToken); err != nil {
			s.logger.Warn("global sign out failed", "owner_id", sess.OwnerID, "error", err)
		}
	}

	if err := s.tasks.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear local data: %w", err)
	}
	if sess.OwnerID != "" {
		if err := s.kv.Delete(ctx, syncer.LastSyncKey(sess.OwnerID)); err != nil {
			return fmt.Errorf("failed to clear sync checkpoint: %w", err)
		}
	}
	if err := s.kv.Delete(ctx, sessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	if sess.OwnerID != "" {
		s.logger.Info("signed out", "owner_id", sess.OwnerID)
	}
	return nil
}

func (s *AuthService) expiry(expiresIn int32) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return s.now().Add(time.Duration(expiresIn) * time.Second).UTC()
}
