package login

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lyrics", "credential")
	store := NewFileStore(path)

	got, err := store.Load(ctx)
	if err != nil || got != "" {
		t.Fatalf("expected empty credential before save, got %q (%v)", got, err)
	}

	if err := store.Save(ctx, "MUSIC_U=abc; __csrf=def"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("credential file mode %v, want 0600", info.Mode().Perm())
	}

	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != "MUSIC_U=abc; __csrf=def" {
		t.Errorf("unexpected credential %q", got)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got, _ := store.Load(ctx); got != "" {
		t.Errorf("expected empty credential after clear, got %q", got)
	}
}

type memKV struct {
	data   map[string]string
	getErr error
}

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.data[key], nil
}

func (m *memKV) Set(ctx context.Context, key string, value interface{}) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memKV) Del(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	kv := &memKV{data: map[string]string{}}
	store := NewRedisStore(kv, "lyrics:credential")

	if err := store.Save(ctx, "cookie"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if kv.data["lyrics:credential"] != "cookie" {
		t.Errorf("credential not written under configured key: %v", kv.data)
	}

	got, err := store.Load(ctx)
	if err != nil || got != "cookie" {
		t.Fatalf("Load = %q, %v", got, err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got, _ := store.Load(ctx); got != "" {
		t.Errorf("expected empty after clear, got %q", got)
	}

	kv.getErr = errors.New("connection refused")
	if _, err := store.Load(ctx); !errors.Is(err, kv.getErr) {
		t.Errorf("expected wrapped redis error, got %v", err)
	}
}
