package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evcraddock/visit-desk/internal/db"
)

func TestAPIKeyCreateAndValidate(t *testing.T) {
	store := testAPIKeyStore(t)
	ctx := context.Background()

	rawKey, key, err := store.Create(ctx, "Test Key", "Owner@Example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if key.Name != "Test Key" {
		t.Errorf("name = %q, want %q", key.Name, "Test Key")
	}
	if key.Email != "owner@example.com" {
		t.Errorf("email = %q, want lower-cased", key.Email)
	}

	email, err := store.Validate(ctx, rawKey)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if email != "owner@example.com" {
		t.Errorf("email = %q, want %q", email, "owner@example.com")
	}
}

func TestAPIKeyCreateRequiresEmail(t *testing.T) {
	store := testAPIKeyStore(t)
	if _, _, err := store.Create(context.Background(), "No Owner", "  "); err == nil {
		t.Fatal("expected error for empty email")
	}
}

func TestAPIKeyValidateInvalid(t *testing.T) {
	store := testAPIKeyStore(t)
	ctx := context.Background()

	for _, key := range []string{"vd_boguskey12345678", "xx_boguskey12345678", ""} {
		email, err := store.Validate(ctx, key)
		if err != nil {
			t.Fatalf("validate %q: %v", key, err)
		}
		if email != "" {
			t.Errorf("validate %q: expected invalid key", key)
		}
	}
}

func TestAPIKeyList(t *testing.T) {
	store := testAPIKeyStore(t)
	ctx := context.Background()

	if _, _, err := store.Create(ctx, "Key 1", "test@example.com"); err != nil {
		t.Fatalf("create 1: %v", err)
	}
	if _, _, err := store.Create(ctx, "Key 2", "test@example.com"); err != nil {
		t.Fatalf("create 2: %v", err)
	}

	keys, err := store.List(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}

	other, err := store.List(ctx, "other@example.com")
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("got %d keys for other user, want 0", len(other))
	}
}

func TestAPIKeyDelete(t *testing.T) {
	store := testAPIKeyStore(t)
	ctx := context.Background()

	rawKey, key, err := store.Create(ctx, "To Delete", "alice@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Delete(ctx, key.ID, "bob@example.com"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("delete by other user: err = %v, want ErrKeyNotFound", err)
	}
	if err := store.Delete(ctx, key.ID, "alice@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	email, err := store.Validate(ctx, rawKey)
	if err != nil {
		t.Fatalf("validate after delete: %v", err)
	}
	if email != "" {
		t.Error("expected invalid after delete")
	}
}

func TestAPIKeyUpdatesLastUsed(t *testing.T) {
	store := testAPIKeyStore(t)
	ctx := context.Background()

	rawKey, _, err := store.Create(ctx, "Usage Key", "test@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	keys, err := store.List(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if keys[0].LastUsedAt != nil {
		t.Error("expected nil last_used_at before first use")
	}

	if _, err := store.Validate(ctx, rawKey); err != nil {
		t.Fatalf("validate: %v", err)
	}

	keys, err = store.List(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("list after use: %v", err)
	}
	if keys[0].LastUsedAt == nil {
		t.Error("expected non-nil last_used_at after use")
	}
}

func TestAPIKeyPrefix(t *testing.T) {
	store := testAPIKeyStore(t)

	rawKey, key, err := store.Create(context.Background(), "Prefix Key", "test@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(rawKey, "vd_") {
		t.Errorf("raw key should start with vd_, got %q", rawKey[:3])
	}
	if len(rawKey) != len("vd_")+64 {
		t.Errorf("raw key length = %d, want %d", len(rawKey), len("vd_")+64)
	}
	if key.KeyPrefix != rawKey[:8] {
		t.Errorf("prefix = %q, want %q", key.KeyPrefix, rawKey[:8])
	}
}

func testAPIKeyStore(t *testing.T) *APIKeyStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return NewAPIKeyStore(d)
}
