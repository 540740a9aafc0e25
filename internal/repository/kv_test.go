package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/repository"
)

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewSQLiteKV(newTestDB(t))

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := kv.Put(ctx, "theme", "dark"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := kv.Put(ctx, "theme", "light"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := kv.Get(ctx, "theme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "light" {
		t.Errorf("got %q, want light", got)
	}

	if err := kv.Delete(ctx, "theme"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := kv.Get(ctx, "theme"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestKV_JSONHelpers(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewSQLiteKV(newTestDB(t))

	in := model.Session{OwnerID: "sub-1", Email: "a@example.com", RefreshToken: "r"}
	if err := repository.PutJSON(ctx, kv, "session", in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out model.Session
	if err := repository.GetJSON(ctx, kv, "session", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.OwnerID != "sub-1" || out.Email != "a@example.com" || out.RefreshToken != "r" {
		t.Errorf("got %+v", out)
	}

	if err := kv.Put(ctx, "broken", "{"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repository.GetJSON(ctx, kv, "broken", &out); err == nil {
		t.Error("expected decode error")
	}
}
