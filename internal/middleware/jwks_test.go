package middleware_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jaekwang-park/tasksync/internal/middleware"
)

func jwksBody(t *testing.T, kid string, key *rsa.PrivateKey) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"keys": []map[string]any{
			{"kty": "EC", "kid": "ignored"},
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal JWKS: %v", err)
	}
	return data
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return key
}

// countingJWKS serves body and counts fetches.
func countingJWKS(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestJWKSClient_GetKey(t *testing.T) {
	ctx := context.Background()
	key := generateKey(t)
	srv, calls := countingJWKS(t, jwksBody(t, "kid-1", key))
	client := middleware.NewJWKSClient(srv.URL)

	pub, err := client.GetKey(ctx, "kid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.N.Cmp(key.N) != 0 || pub.E != key.E {
		t.Error("public key does not match private key")
	}

	if _, err := client.GetKey(ctx, "kid-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected cached key, got %d fetches", calls.Load())
	}

	if _, err := client.GetKey(ctx, "ignored"); !errors.Is(err, middleware.ErrKeyNotFound) {
		t.Errorf("non-RSA key should be skipped, got %v", err)
	}
}

func TestJWKSClient_RefreshIsRateLimited(t *testing.T) {
	ctx := context.Background()
	srv, calls := countingJWKS(t, jwksBody(t, "kid-v1", generateKey(t)))
	client := middleware.NewJWKSClient(srv.URL)

	if _, err := client.GetKey(ctx, "kid-v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.GetKey(ctx, "kid-v2"); !errors.Is(err, middleware.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch (rate limited), got %d", calls.Load())
	}

	client.SetRefreshInterval(0)
	if _, err := client.GetKey(ctx, "kid-v2"); !errors.Is(err, middleware.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected a refetch once the interval elapsed, got %d fetches", calls.Load())
	}
}

func TestJWKSClient_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := middleware.NewJWKSClient(srv.URL).GetKey(context.Background(), "any-kid")
	if err == nil {
		t.Fatal("expected error on server error, got nil")
	}
	if errors.Is(err, middleware.ErrKeyNotFound) {
		t.Errorf("fetch failure should not look like a missing key: %v", err)
	}
}
