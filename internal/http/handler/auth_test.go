package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jaekwang-park/tasksync/internal/cognito"
	"github.com/jaekwang-park/tasksync/internal/http/handler"
	"github.com/jaekwang-park/tasksync/internal/service"
)

type sessionBody struct {
	OwnerID      string `json:"owner_id"`
	Email        string `json:"email"`
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func TestAuthHandler_SignUp(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		signUpErr  error
		wantStatus int
		wantCode   string
	}{
		{"success", `{"email":"a@example.com","password":"Passw0rd!"}`, nil, http.StatusCreated, ""},
		{"missing password", `{"email":"a@example.com"}`, nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"already exists", `{"email":"a@example.com","password":"Passw0rd!"}`, cognito.ErrUserAlreadyExists, http.StatusConflict, "USER_ALREADY_EXISTS"},
		{"weak password", `{"email":"a@example.com","password":"x"}`, cognito.ErrInvalidPassword, http.StatusBadRequest, "INVALID_PASSWORD"},
		{"invalid json", `{`, nil, http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newApp(t)
			a.cognito.signUpFn = func(_ context.Context, input cognito.SignUpInput) (cognito.SignUpOutput, error) {
				if tt.signUpErr != nil {
					return cognito.SignUpOutput{}, fmt.Errorf("sign up: %w", tt.signUpErr)
				}
				return cognito.SignUpOutput{UserSub: "sub-123", CodeDelivery: "EMAIL"}, nil
			}
			h := handler.NewAuthHandler(a.auth, a.tasks)

			w := do(t, h, http.MethodPost, "/api/v1/auth/signup", "", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (body: %s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, w); got != tt.wantCode {
					t.Errorf("code = %q, want %q", got, tt.wantCode)
				}
				return
			}
			out := decode[service.SignUpOutput](t, w)
			if out.UserSub != "sub-123" || out.Confirmed {
				t.Errorf("unexpected output: %+v", out)
			}
		})
	}
}

func TestAuthHandler_ConfirmSignUp(t *testing.T) {
	a := newApp(t)
	a.cognito.confirmSignUpFn = func(_ context.Context, input cognito.ConfirmSignUpInput) error {
		if input.Code != "123456" {
			return cognito.ErrInvalidCode
		}
		return nil
	}
	h := handler.NewAuthHandler(a.auth, a.tasks)

	if w := do(t, h, http.MethodPost, "/api/v1/auth/confirm-signup", "", `{"email":"a@example.com","code":"123456"}`); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	w := do(t, h, http.MethodPost, "/api/v1/auth/confirm-signup", "", `{"email":"a@example.com","code":"000000"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := errorCode(t, w); got != "INVALID_CODE" {
		t.Errorf("code = %q, want INVALID_CODE", got)
	}
}

func TestAuthHandler_LoginAndSession(t *testing.T) {
	a := newApp(t)
	h := handler.NewAuthHandler(a.auth, a.tasks)

	w := do(t, h, http.MethodGet, "/api/v1/auth/session", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("session before login: expected 401, got %d", w.Code)
	}
	if got := errorCode(t, w); got != "NO_SESSION" {
		t.Errorf("code = %q, want NO_SESSION", got)
	}

	w = do(t, h, http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@example.com","password":"Passw0rd!"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (body: %s)", w.Code, w.Body.String())
	}
	login := decode[sessionBody](t, w)
	if login.OwnerID != "sub-123" || login.AccessToken != "access-1" || login.TokenType != "Bearer" {
		t.Errorf("unexpected login response: %+v", login)
	}

	sess := decode[sessionBody](t, do(t, h, http.MethodGet, "/api/v1/auth/session", "", ""))
	if sess.OwnerID != "sub-123" || sess.Email != "a@example.com" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if sess.AccessToken != "" || sess.RefreshToken != "" || sess.IDToken != "" {
		t.Error("session endpoint must not expose tokens")
	}
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wrong password", cognito.ErrNotAuthorized, http.StatusUnauthorized, "NOT_AUTHORIZED"},
		{"unconfirmed", cognito.ErrUserNotConfirmed, http.StatusForbidden, "USER_NOT_CONFIRMED"},
		{"throttled", cognito.ErrTooManyRequests, http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newApp(t)
			a.cognito.loginFn = func(context.Context, cognito.LoginInput) (cognito.AuthOutput, error) {
				return cognito.AuthOutput{}, tt.err
			}
			h := handler.NewAuthHandler(a.auth, a.tasks)

			w := do(t, h, http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@example.com","password":"x"}`)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := errorCode(t, w); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	a := newApp(t)
	a.cognito.refreshTokensFn = func(_ context.Context, input cognito.RefreshInput) (cognito.AuthOutput, error) {
		if input.RefreshToken != "refresh-1" {
			return cognito.AuthOutput{}, cognito.ErrNotAuthorized
		}
		return cognito.AuthOutput{IDToken: "id-2", AccessToken: "access-2", ExpiresIn: 3600}, nil
	}
	h := handler.NewAuthHandler(a.auth, a.tasks)

	if w := do(t, h, http.MethodPost, "/api/v1/auth/refresh", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh without session: expected 401, got %d", w.Code)
	}

	do(t, h, http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@example.com","password":"Passw0rd!"}`)
	w := do(t, h, http.MethodPost, "/api/v1/auth/refresh", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (body: %s)", w.Code, w.Body.String())
	}
	got := decode[sessionBody](t, w)
	if got.AccessToken != "access-2" || got.RefreshToken != "refresh-1" {
		t.Errorf("unexpected refreshed tokens: %+v", got)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	a := newApp(t)
	var revoked string
	a.cognito.globalSignOutFn = func(_ context.Context, accessToken string) error {
		revoked = accessToken
		return errors.New("network down")
	}
	auth := handler.NewAuthHandler(a.auth, a.tasks)
	tasks := handler.NewTaskHandler(a.tasks)

	do(t, auth, http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@example.com","password":"Passw0rd!"}`)
	do(t, tasks, http.MethodPost, "/api/v1/tasks", "sub-123", `{"title":"secret"}`)

	if w := do(t, auth, http.MethodPost, "/api/v1/auth/logout", "", ""); w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200 even when revocation fails, got %d", w.Code)
	}
	if revoked != "access-1" {
		t.Errorf("revoked token = %q, want access-1", revoked)
	}

	list := decode[listBody](t, do(t, tasks, http.MethodGet, "/api/v1/tasks", "sub-123", ""))
	if len(list.Tasks) != 0 {
		t.Errorf("tasks survived logout: %+v", list.Tasks)
	}
	entries, err := a.queue.ListOwner(context.Background(), "sub-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("queue survived logout: %d entries", len(entries))
	}
	if w := do(t, auth, http.MethodGet, "/api/v1/auth/session", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("session after logout: expected 401, got %d", w.Code)
	}
}

func TestAuthHandler_Routing(t *testing.T) {
	a := newApp(t)
	h := handler.NewAuthHandler(a.auth, a.tasks)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/api/v1/auth/login", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/v1/auth/logout", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/v1/auth/session", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/v1/auth/forgot-password", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := do(t, h, tt.method, tt.path, "", ""); w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}
