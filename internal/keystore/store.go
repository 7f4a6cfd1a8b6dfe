// Package keystore keeps private keys on disk encrypted under a passphrase
// (argon2id key derivation, XChaCha20-Poly1305 sealing).
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"entrypass/go-core/internal/keys"
)

const fileExt = ".key"

var (
	ErrInvalidName = errors.New("key name must be a plain file name")
	ErrPublicOnly  = errors.New("cannot store a key without private scalar")
	ErrNotFound    = errors.New("key not found")
)

type record struct {
	Name      string    `json:"name"`
	D         []byte    `json:"d"`
	CreatedAt time.Time `json:"created_at"`
}

// Seal encrypts the private scalar of k.
func Seal(passphrase, name string, k *keys.Key, now time.Time) ([]byte, error) {
	if k == nil || !k.HasPrivate() {
		return nil, ErrPublicOnly
	}
	rec := record{Name: name, D: k.D().FillBytes(make([]byte, keys.ScalarSize)), CreatedAt: now.UTC()}
	payload, err := json.Marshal(rec)
	zeroBytes(rec.D)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(payload)
	return Encrypt(passphrase, payload)
}

// Open decrypts a sealed key.
func Open(passphrase string, data []byte) (*keys.Key, error) {
	payload, err := Decrypt(passphrase, data)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(payload)
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, ErrInvalid
	}
	defer zeroBytes(rec.D)
	k, err := keys.NewPrivate(new(big.Int).SetBytes(rec.D))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return k, nil
}

// SaveFile writes a sealed key to path with owner-only permissions.
func SaveFile(path, passphrase string, k *keys.Key) error {
	sealed, err := Seal(passphrase, strings.TrimSuffix(filepath.Base(path), fileExt), k, time.Now())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func LoadFile(path, passphrase string) (*keys.Key, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	return Open(passphrase, raw)
}

// Store is a directory of named key files.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: strings.TrimSpace(dir)}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name+fileExt), nil
}

func (s *Store) Save(name, passphrase string, k *keys.Key) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return SaveFile(path, passphrase, k)
}

func (s *Store) Load(name, passphrase string) (*keys.Key, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return LoadFile(path, passphrase)
}

// List returns the stored key names in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}
