package handler_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaekwang-park/tasksync/internal/cognito"
	"github.com/jaekwang-park/tasksync/internal/http/handler"
	"github.com/jaekwang-park/tasksync/internal/middleware"
	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/remote"
	"github.com/jaekwang-park/tasksync/internal/repository"
	"github.com/jaekwang-park/tasksync/internal/service"
	"github.com/jaekwang-park/tasksync/internal/syncer"
)

var now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeNet struct {
	offline atomic.Bool
}

func (f *fakeNet) Online(context.Context) bool { return !f.offline.Load() }

// flakyStore is the in-memory remote with switchable batch failures.
type flakyStore struct {
	*remote.Memory
	fail atomic.Bool
}

func (s *flakyStore) BatchWrite(ctx context.Context, tasks []model.Task) error {
	if s.fail.Load() {
		return errors.New("remote unavailable")
	}
	return s.Memory.BatchWrite(ctx, tasks)
}

type mockCognitoClient struct {
	signUpFn        func(ctx context.Context, input cognito.SignUpInput) (cognito.SignUpOutput, error)
	confirmSignUpFn func(ctx context.Context, input cognito.ConfirmSignUpInput) error
	loginFn         func(ctx context.Context, input cognito.LoginInput) (cognito.AuthOutput, error)
	refreshTokensFn func(ctx context.Context, input cognito.RefreshInput) (cognito.AuthOutput, error)
	globalSignOutFn func(ctx context.Context, accessToken string) error
}

func (m *mockCognitoClient) SignUp(ctx context.Context, input cognito.SignUpInput) (cognito.SignUpOutput, error) {
	return m.signUpFn(ctx, input)
}
func (m *mockCognitoClient) ConfirmSignUp(ctx context.Context, input cognito.ConfirmSignUpInput) error {
	return m.confirmSignUpFn(ctx, input)
}
func (m *mockCognitoClient) Login(ctx context.Context, input cognito.LoginInput) (cognito.AuthOutput, error) {
	return m.loginFn(ctx, input)
}
func (m *mockCognitoClient) RefreshTokens(ctx context.Context, input cognito.RefreshInput) (cognito.AuthOutput, error) {
	return m.refreshTokensFn(ctx, input)
}
func (m *mockCognitoClient) GlobalSignOut(ctx context.Context, accessToken string) error {
	return m.globalSignOutFn(ctx, accessToken)
}

func fakeIDToken(sub, email string) string {
	header := "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9"
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"` + sub + `","email":"` + email + `"}`))
	return header + "." + payload + ".fakesig"
}

// app is a fully wired handler set over a temp SQLite file and an
// in-memory remote.
type app struct {
	tasks   *service.TaskService
	auth    *service.AuthService
	orch    *syncer.Orchestrator
	remote  *flakyStore
	net     *fakeNet
	cognito *mockCognitoClient
	queue   *repository.SQLiteQueue
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "tasksync.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	var mu sync.Mutex
	clock := now
	db.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	})

	taskRepo := repository.NewSQLiteTasks(db)
	kv := repository.NewSQLiteKV(db)
	a := &app{
		remote: &flakyStore{Memory: remote.NewMemory()},
		net:    &fakeNet{},
		queue:  repository.NewSQLiteQueue(db),
		cognito: &mockCognitoClient{
			loginFn: func(_ context.Context, input cognito.LoginInput) (cognito.AuthOutput, error) {
				return cognito.AuthOutput{
					IDToken:      fakeIDToken("sub-123", input.Email),
					AccessToken:  "access-1",
					RefreshToken: "refresh-1",
					ExpiresIn:    3600,
				}, nil
			},
			globalSignOutFn: func(context.Context, string) error { return nil },
		},
	}
	a.orch = syncer.New(syncer.Deps{
		Tasks:       taskRepo,
		Queue:       a.queue,
		Remote:      a.remote,
		Network:     a.net,
		Checkpoints: kv,
	}, syncer.Config{}, discardLogger())
	a.orch.SetClock(func() time.Time { return now })
	a.orch.Replayer().SetWait(func(context.Context, time.Duration) error { return nil })
	t.Cleanup(a.orch.Close)

	a.tasks = service.NewTaskService(taskRepo, a.queue, a.orch, a.orch.Replayer(), discardLogger())
	a.auth = service.NewAuthService(a.cognito, kv, taskRepo, discardLogger())
	return a
}

// do sends a request as owner through h, the way the router would after
// the auth middleware resolved the caller.
func do(t *testing.T, h http.Handler, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if owner != "" {
		req = req.WithContext(middleware.SetOwnerID(req.Context(), owner))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handler.ErrorResponse](t, w).Error.Code
}
