package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testBox(t *testing.T) *Box {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	b, err := NewBox(key)
	if err != nil {
		t.Fatalf("NewBox() error: %v", err)
	}
	return b
}

func TestNewBox(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid 32-byte key", base64.StdEncoding.EncodeToString(make([]byte, 32)), false},
		{"empty key", "", true},
		{"invalid base64", "not-base64!!!", true},
		{"16-byte key", base64.StdEncoding.EncodeToString(make([]byte, 16)), true},
		{"64-byte key", base64.StdEncoding.EncodeToString(make([]byte, 64)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBox(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBox() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrKey) {
				t.Errorf("NewBox() error = %v, want ErrKey", err)
			}
		})
	}
}

func TestSealOpen(t *testing.T) {
	b := testBox(t)
	for _, plain := range []string{"x", "oauth:abcdef0123456789", strings.Repeat("token", 200), "ünïcødé"} {
		sealed, err := b.Seal(plain, "twitch/access")
		if err != nil {
			t.Fatalf("Seal() error: %v", err)
		}
		if !IsSealed(sealed) || strings.Contains(sealed, plain) {
			t.Errorf("Seal(%q) = %q", plain, sealed)
		}
		got, err := b.Open(sealed, "twitch/access")
		if err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		if got != plain {
			t.Errorf("Open() = %q, want %q", got, plain)
		}
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	b := testBox(t)
	one, _ := b.Seal("same", "l")
	two, _ := b.Seal("same", "l")
	if one == two {
		t.Error("sealing twice produced identical output")
	}
}

func TestEmptyValues(t *testing.T) {
	b := testBox(t)
	if s, err := b.Seal("", "l"); s != "" || err != nil {
		t.Errorf("Seal(\"\") = %q, %v", s, err)
	}
	if s, err := b.Open("", "l"); s != "" || err != nil {
		t.Errorf("Open(\"\") = %q, %v", s, err)
	}
}

func TestOpenRejects(t *testing.T) {
	b := testBox(t)
	sealed, _ := b.Seal("secret", "twitch/access")
	other := testBox(t)

	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, KeyVersion+":"))
	raw[len(raw)-1] ^= 0xff
	tampered := KeyVersion + ":" + base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name   string
		box    *Box
		sealed string
		label  string
	}{
		{"wrong label", b, sealed, "twitch/refresh"},
		{"wrong key", other, sealed, "twitch/access"},
		{"tampered", b, tampered, "twitch/access"},
		{"no version", b, strings.TrimPrefix(sealed, KeyVersion+":"), "twitch/access"},
		{"unknown version", b, "v9:" + strings.TrimPrefix(sealed, KeyVersion+":"), "twitch/access"},
		{"bad base64", b, KeyVersion + ":@@@", "twitch/access"},
		{"too short", b, KeyVersion + ":" + base64.StdEncoding.EncodeToString([]byte("short")), "twitch/access"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.box.Open(tt.sealed, tt.label); !errors.Is(err, ErrOpen) {
				t.Errorf("Open() error = %v, want ErrOpen", err)
			}
		})
	}
}
