package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/service"
)

// AuthHandler handles /api/v1/auth/* on behalf of the device's single
// signed-in account.
type AuthHandler struct {
	svc   *service.AuthService
	tasks *service.TaskService
}

func NewAuthHandler(svc *service.AuthService, tasks *service.TaskService) *AuthHandler {
	return &AuthHandler{svc: svc, tasks: tasks}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/auth/")
	path = strings.TrimRight(path, "/")

	switch path {
	case "signup":
		h.requirePost(w, r, h.handleSignUp)
	case "confirm-signup":
		h.requirePost(w, r, h.handleConfirmSignUp)
	case "login":
		h.requirePost(w, r, h.handleLogin)
	case "refresh":
		h.requirePost(w, r, h.handleRefresh)
	case "logout":
		h.requirePost(w, r, h.handleLogout)
	case "session":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.handleSession(w, r)
	default:
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
	}
}

func (h *AuthHandler) requirePost(w http.ResponseWriter, r *http.Request, handler func(http.ResponseWriter, *http.Request)) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	handler(w, r)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type confirmSignUpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type sessionResponse struct {
	OwnerID      string    `json:"owner_id"`
	Email        string    `json:"email"`
	IDToken      string    `json:"id_token,omitempty"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type,omitempty"`
}

func tokensOf(s model.Session) sessionResponse {
	return sessionResponse{
		OwnerID:      s.OwnerID,
		Email:        s.Email,
		IDToken:      s.IDToken,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		TokenType:    "Bearer",
	}
}

func (h *AuthHandler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.SignUp(r.Context(), service.SignUpInput{Email: req.Email, Password: req.Password})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (h *AuthHandler) handleConfirmSignUp(w http.ResponseWriter, r *http.Request) {
	var req confirmSignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ConfirmSignUp(r.Context(), req.Email, req.Code); err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "email confirmed"})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokensOf(sess))
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Refresh(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokensOf(sess))
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.tasks.Forget()
	WriteJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// handleSession reports who is signed in without exposing the tokens.
func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.CurrentSession(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sessionResponse{
		OwnerID:   sess.OwnerID,
		Email:     sess.Email,
		ExpiresAt: sess.ExpiresAt,
	})
}
