package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/quotagate/ports"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestProfileStore_LinkAndGet(t *testing.T) {
	store := NewProfileStore(openTestDB(t))
	ctx := context.Background()

	if _, err := store.Get(ctx, "user-1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("Get before link = %v, want ErrNotFound", err)
	}

	if err := store.Link(ctx, "user-1", "acc-42"); err != nil {
		t.Fatalf("Link: %v", err)
	}

	p, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.BillingAccountID != "acc-42" {
		t.Errorf("BillingAccountID = %q, want acc-42", p.BillingAccountID)
	}

	// Re-link replaces the account id.
	if err := store.Link(ctx, "user-1", "acc-43"); err != nil {
		t.Fatalf("re-Link: %v", err)
	}
	p, err = store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get after re-link: %v", err)
	}
	if p.BillingAccountID != "acc-43" {
		t.Errorf("BillingAccountID = %q, want acc-43", p.BillingAccountID)
	}
}

func TestProfileStore_Unlink(t *testing.T) {
	store := NewProfileStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Unlink(ctx, "ghost"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Unlink missing = %v, want ErrNotFound", err)
	}

	if err := store.Link(ctx, "user-1", "acc-42"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := store.Unlink(ctx, "user-1"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	p, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.BillingAccountID != "" {
		t.Errorf("BillingAccountID = %q, want empty after unlink", p.BillingAccountID)
	}
}

func TestTokenStore_CreateAndLookup(t *testing.T) {
	store := NewTokenStore(openTestDB(t))
	ctx := context.Background()

	tok := ports.APIToken{
		ID:        "tok-1",
		UserID:    "user-1",
		Name:      "ci",
		Prefix:    "qg_abc123",
		Hash:      []byte("$2a$10$fakehash"),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Create(ctx, tok); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.GetByPrefix(ctx, "qg_abc123")
	if err != nil {
		t.Fatalf("GetByPrefix: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tokens, want 1", len(got))
	}
	if got[0].UserID != "user-1" || string(got[0].Hash) != "$2a$10$fakehash" {
		t.Errorf("token = %+v", got[0])
	}
	if got[0].LastUsed != nil {
		t.Errorf("LastUsed = %v, want nil", got[0].LastUsed)
	}

	if got, err := store.GetByPrefix(ctx, "other"); err != nil || len(got) != 0 {
		t.Errorf("GetByPrefix(other) = %v, %v; want empty", got, err)
	}
}

func TestTokenStore_List(t *testing.T) {
	store := NewTokenStore(openTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, tok := range []ports.APIToken{
		{ID: "tok-1", UserID: "user-1", Prefix: "qg_aaa", Hash: []byte("h")},
		{ID: "tok-2", UserID: "user-2", Prefix: "qg_bbb", Hash: []byte("h")},
		{ID: "tok-3", UserID: "user-1", Prefix: "qg_ccc", Hash: []byte("h")},
	} {
		tok.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := store.Create(ctx, tok); err != nil {
			t.Fatalf("Create %s: %v", tok.ID, err)
		}
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List all returned %d tokens, want 3", len(all))
	}

	mine, err := store.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List user-1: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "tok-1" || mine[1].ID != "tok-3" {
		t.Errorf("List user-1 = %+v, want tok-1 then tok-3", mine)
	}
}

func TestTokenStore_TouchAndDelete(t *testing.T) {
	store := NewTokenStore(openTestDB(t))
	ctx := context.Background()

	tok := ports.APIToken{
		ID:        "tok-1",
		UserID:    "user-1",
		Prefix:    "qg_abc123",
		Hash:      []byte("h"),
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, tok); err != nil {
		t.Fatalf("Create: %v", err)
	}

	used := time.Now().UTC().Truncate(time.Second)
	if err := store.TouchLastUsed(ctx, "tok-1", used); err != nil {
		t.Fatalf("TouchLastUsed: %v", err)
	}
	got, err := store.GetByPrefix(ctx, "qg_abc123")
	if err != nil || len(got) != 1 {
		t.Fatalf("GetByPrefix: %v, %d", err, len(got))
	}
	if got[0].LastUsed == nil || !got[0].LastUsed.Equal(used) {
		t.Errorf("LastUsed = %v, want %v", got[0].LastUsed, used)
	}

	if err := store.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "tok-1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}
