package storage

import (
	"errors"
	"testing"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("missing key error = %v, want ErrKeyNotFound", err)
	}

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v" {
		t.Fatalf("value = %q", value)
	}

	// Mutating the returned slice must not corrupt the stored copy.
	value[0] = 'x'
	again, err := db.Get([]byte("k"))
	if err != nil || string(again) != "v" {
		t.Fatalf("stored value corrupted: %q err=%v", again, err)
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("deleted key error = %v, want ErrKeyNotFound", err)
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("curve/state"), []byte{0x01}); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("curve/state"))
	if err != nil || len(value) != 1 || value[0] != 0x01 {
		t.Fatalf("get = %v, err=%v", value, err)
	}
	if _, err := db.Get([]byte("absent")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("missing key error = %v, want ErrKeyNotFound", err)
	}
}
