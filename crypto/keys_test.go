package crypto

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := key.PubKey().Address()
	encoded := addr.String()
	if !strings.HasPrefix(encoded, "card1") {
		t.Fatalf("unexpected prefix in %s", encoded)
	}
	raw, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if raw != addr.Raw() {
		t.Fatalf("round trip mismatch")
	}
	if FormatAddress(raw) != encoded {
		t.Fatalf("format mismatch")
	}
}

func TestParseAddressRejectsForeignPrefix(t *testing.T) {
	foreign := MustNewAddress("nhb", make([]byte, 20)).String()
	if _, err := ParseAddress(foreign); err == nil {
		t.Fatalf("expected prefix error")
	}
	if _, err := NewAddress(CardPrefix, []byte{1, 2}); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "authority.json")
	key, err := GenerateKeystore(path, "secret")
	if err != nil {
		t.Fatalf("generate keystore: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "secret")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PubKey().Address() != key.PubKey().Address() {
		t.Fatalf("loaded key differs")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}
