package crypto

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(BancorPrefix)) {
		t.Fatalf("address %s missing prefix", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded.Bytes()) != string(addr.Bytes()) {
		t.Fatal("decoded address bytes differ")
	}
	if decoded.Prefix() != BancorPrefix {
		t.Fatalf("decoded prefix = %s", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("garbage address accepted")
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "node.keystore")
	if err := SaveToKeystore(path, key, "passphrase"); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFromKeystore(path, "passphrase")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PubKey().Address().String() != key.PubKey().Address().String() {
		t.Fatal("loaded key derives a different address")
	}

	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatal("wrong passphrase accepted")
	}
}
