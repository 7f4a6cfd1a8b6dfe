package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"entrypass/go-core/internal/keys"
	"entrypass/go-core/internal/randsource"
)

func testKey(t *testing.T) *keys.Key {
	t.Helper()
	src, err := randsource.NewDeterministic([]byte("keystore-test"), t.Name())
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	k, err := keys.Generate(src)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return k
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	plain, err := Decrypt("pass", data)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(plain) != "secret" {
		t.Fatalf("unexpected plaintext: %q", string(plain))
	}
	if _, err := Decrypt("wrong", data); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptTamperedFailsDeterministically(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	data[len(data)-2] ^= 0xFF
	_, err = Decrypt("pass", data)
	if !errors.Is(err, ErrAuthFailed) && !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptRejectsForeignData(t *testing.T) {
	if _, err := Decrypt("pass", []byte(`{"version":1}`)); !errors.Is(err, ErrNotKeyFile) {
		t.Fatalf("expected ErrNotKeyFile, got %v", err)
	}
	if _, err := Decrypt("pass", []byte(filePrefix+"{}")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := Encrypt("", []byte("x")); !errors.Is(err, ErrPassphraseRequired) {
		t.Fatalf("expected ErrPassphraseRequired, got %v", err)
	}
}

func TestDecryptRejectsOversizedKDF(t *testing.T) {
	env, err := EncryptEnvelope("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	env.KDFMemoryKB = maxKDFMemory + 1
	if _, err := DecryptEnvelope("pass", env); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestSealOpenKey(t *testing.T) {
	k := testKey(t)
	sealed, err := Seal("correct horse", "root", k, time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	back, err := Open("correct horse", sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !back.Equal(k) || back.D().Cmp(k.D()) != 0 {
		t.Fatal("opened key must match the sealed one")
	}
	if _, err := Seal("pass", "pub", k.Public(), time.Now()); !errors.Is(err, ErrPublicOnly) {
		t.Fatalf("expected ErrPublicOnly, got %v", err)
	}
}

func TestStoreSaveLoadList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	store := NewStore(dir)
	k := testKey(t)
	if err := store.Save("issuer", "pass", k); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, _ := store.Path("issuer")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("key file must be owner-only, got %v", info.Mode().Perm())
	}
	loaded, err := store.Load("issuer", "pass")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Equal(k) {
		t.Fatal("loaded key mismatch")
	}
	names, err := store.List()
	if err != nil || len(names) != 1 || names[0] != "issuer" {
		t.Fatalf("unexpected list %v %v", names, err)
	}
	if _, err := store.Load("missing", "pass"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save("../escape", "pass", k); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestListMissingDir(t *testing.T) {
	names, err := NewStore(filepath.Join(t.TempDir(), "none")).List()
	if err != nil || len(names) != 0 {
		t.Fatalf("missing dir must list nothing: %v %v", names, err)
	}
}
