package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/contact-bot/chat"
	"github.com/onnwee/contact-bot/crypto"
	"github.com/onnwee/contact-bot/db"
	"github.com/onnwee/contact-bot/testutil"
)

func TestMigrationsIdempotent(t *testing.T) {
	database := testutil.SetupTestDB(t)
	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("second RunMigrations() = %v", err)
	}
	version, dirty, err := db.MigrationVersion(database)
	if err != nil {
		t.Fatal(err)
	}
	if version < 2 || dirty {
		t.Errorf("version = %d dirty = %v", version, dirty)
	}
}

func TestPinStore(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := db.NewPinStore(database)

	m1 := chat.Message{ID: "m1", Author: chat.User{ID: "99", Name: "ContactBot"}, Content: "1 (bob): <b>tree</b>", Sent: time.Now().UTC()}
	m2 := chat.Message{ID: "m2", Author: chat.User{ID: "99", Name: "ContactBot"}, Content: "alice defending <b>A</b>"}
	for _, m := range []chat.Message{m1, m2, m1} {
		if err := store.Pin(ctx, m); err != nil {
			t.Fatalf("Pin(%s) = %v", m.ID, err)
		}
	}

	got, ok, err := store.Get(ctx, "m1")
	if err != nil || !ok {
		t.Fatalf("Get(m1) = %v, %v", ok, err)
	}
	if got.Content != m1.Content || got.Author != m1.Author {
		t.Errorf("Get(m1) = %+v", got)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}

	if err := store.Unpin(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Unpin(ctx, "missing"); err != nil {
		t.Errorf("Unpin(missing) = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "m1"); ok {
		t.Error("m1 still pinned")
	}
}

func TestTokenStorePlaintext(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := db.NewTokenStore(database, nil)

	if _, err := store.GetOAuthToken(ctx, "twitch"); !errors.Is(err, db.ErrNoToken) {
		t.Fatalf("GetOAuthToken(empty) = %v, want ErrNoToken", err)
	}

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := db.Token{Provider: "twitch", AccessToken: "at", RefreshToken: "rt", Expiry: exp, Scope: "chat:read chat:edit"}
	if err := store.UpsertOAuthToken(ctx, tok); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetOAuthToken(ctx, "twitch")
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "at" || got.RefreshToken != "rt" || !got.Expiry.Equal(exp) || got.Scope != tok.Scope {
		t.Errorf("GetOAuthToken() = %+v", got)
	}
}

func TestTokenStoreEncrypted(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	key, _ := crypto.GenerateKey()
	box, err := crypto.NewBox(key)
	if err != nil {
		t.Fatal(err)
	}
	store := db.NewTokenStore(database, box)

	if err := store.UpsertOAuthToken(ctx, db.Token{Provider: "twitch", AccessToken: "secret-at", RefreshToken: "secret-rt"}); err != nil {
		t.Fatal(err)
	}

	var raw string
	var version int
	if err := database.QueryRow(`SELECT access_token, encryption_version FROM oauth_tokens WHERE provider='twitch'`).Scan(&raw, &version); err != nil {
		t.Fatal(err)
	}
	if raw == "secret-at" || !crypto.IsSealed(raw) || version != 1 {
		t.Errorf("stored access_token = %q version %d", raw, version)
	}

	got, err := store.GetOAuthToken(ctx, "twitch")
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "secret-at" || got.RefreshToken != "secret-rt" {
		t.Errorf("GetOAuthToken() = %+v", got)
	}

	plain := db.NewTokenStore(database, nil)
	if _, err := plain.GetOAuthToken(ctx, "twitch"); err == nil {
		t.Error("reading an encrypted token without a key should fail")
	}
}

func TestTokenStoreSealPlaintext(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	plain := db.NewTokenStore(database, nil)
	if err := plain.UpsertOAuthToken(ctx, db.Token{Provider: "twitch", AccessToken: "at", RefreshToken: "rt"}); err != nil {
		t.Fatal(err)
	}
	if _, err := plain.SealPlaintext(ctx, false); err == nil {
		t.Error("SealPlaintext() without a key should fail")
	}

	key, _ := crypto.GenerateKey()
	box, err := crypto.NewBox(key)
	if err != nil {
		t.Fatal(err)
	}
	sealer := db.NewTokenStore(database, box)

	would, err := sealer.SealPlaintext(ctx, true)
	if err != nil || len(would) != 1 || would[0] != "twitch" {
		t.Fatalf("SealPlaintext(dry run) = %v, %v", would, err)
	}
	if status, _ := sealer.EncryptionStatus(ctx); status[0] != 1 || status[1] != 0 {
		t.Errorf("status after dry run = %v", status)
	}

	sealed, err := sealer.SealPlaintext(ctx, false)
	if err != nil || len(sealed) != 1 {
		t.Fatalf("SealPlaintext() = %v, %v", sealed, err)
	}
	if status, _ := sealer.EncryptionStatus(ctx); status[0] != 0 || status[1] != 1 {
		t.Errorf("status after sealing = %v", status)
	}
	got, err := sealer.GetOAuthToken(ctx, "twitch")
	if err != nil || got.AccessToken != "at" || got.RefreshToken != "rt" {
		t.Errorf("GetOAuthToken() = %+v, %v", got, err)
	}
	if again, err := sealer.SealPlaintext(ctx, false); err != nil || len(again) != 0 {
		t.Errorf("second SealPlaintext() = %v, %v", again, err)
	}
}
