package crypto

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const keySize = 32 // AES-256

// Key is one unit of symmetric key material. Keys are never mutated after
// creation; rotation retires a key logically but keeps it retrievable so old
// ciphertexts stay decryptable.
type Key struct {
	ID       string
	Material []byte
}

// ErrKeyNotFound is returned when a requested key identifier is unknown to
// the store. Callers must treat it as distinct from an authentication failure.
var ErrKeyNotFound = errors.New("encryption key not found")

// KeyStore tracks key material and the single active key used for new
// encryptions. Rotate must be atomic with respect to concurrent ActiveKey
// reads: a reader sees either the old or the new active key, never a torn
// state.
type KeyStore interface {
	ActiveKey(ctx context.Context) (Key, error)
	Key(ctx context.Context, id string) (Key, error)
	Rotate(ctx context.Context) (Key, error)
	List(ctx context.Context) ([]string, error)
}

func generateKey() (Key, error) {
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return Key{}, fmt.Errorf("generate key id: %w", err)
	}
	material := make([]byte, keySize)
	if _, err := rand.Read(material); err != nil {
		return Key{}, fmt.Errorf("generate key material: %w", err)
	}
	return Key{ID: hex.EncodeToString(id), Material: material}, nil
}
