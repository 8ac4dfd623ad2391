package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// AlgAES256GCM is the only algorithm this core produces. The tag is part of
// the payload so foreign payloads with unknown algorithms are rejected before
// any key material is touched.
const AlgAES256GCM = "AES-256-GCM"

const nonceSize = 12

// ErrAuthentication is returned when AEAD verification fails: a flipped byte
// in ciphertext, tag, or associated data, or associated data that differs
// from what was bound at encryption time. No plaintext is ever returned
// alongside it, and the message deliberately does not distinguish the cause.
var ErrAuthentication = errors.New("decryption authentication failed")

// Payload is the self-describing encrypted form of one field value. Binary
// fields are base64url without padding so payloads embed cleanly in JSON and
// URLs.
type Payload struct {
	Alg        string `json:"alg"`
	KeyID      string `json:"keyId"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
	Ciphertext string `json:"ciphertext"`
	AAD        string `json:"aad,omitempty"`
}

// Encryptor provides authenticated encryption for sensitive field values,
// resolving keys through a KeyStore so rotation never breaks old ciphertexts.
type Encryptor struct {
	keys KeyStore
}

func NewEncryptor(keys KeyStore) *Encryptor {
	return &Encryptor{keys: keys}
}

// Encrypt seals plaintext under the store's active key with a fresh 96-bit
// nonce. The optional associated data is authenticated but not encrypted; the
// same bytes must be presented again at decryption time.
func (e *Encryptor) Encrypt(ctx context.Context, plaintext, aad []byte) (*Payload, error) {
	key, err := e.keys.ActiveKey(ctx)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key.Material)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, aad)
	tagStart := len(sealed) - gcm.Overhead()

	p := &Payload{
		Alg:        AlgAES256GCM,
		KeyID:      key.ID,
		IV:         b64(nonce),
		Tag:        b64(sealed[tagStart:]),
		Ciphertext: b64(sealed[:tagStart]),
	}
	if len(aad) > 0 {
		p.AAD = b64(aad)
	}
	return p, nil
}

// Decrypt opens a payload using the exact key it names. It fails closed:
// ErrKeyNotFound when the key id is unknown, ErrAuthentication when the tag
// does not verify. The aad argument must be the bytes bound at encryption
// time; the payload's own aad field is a transport copy and is not trusted.
func (e *Encryptor) Decrypt(ctx context.Context, p *Payload, aad []byte) ([]byte, error) {
	if p.Alg != AlgAES256GCM {
		return nil, fmt.Errorf("unsupported algorithm %q", p.Alg)
	}

	key, err := e.keys.Key(ctx, p.KeyID)
	if err != nil {
		return nil, err
	}

	nonce, err := unb64(p.IV)
	if err != nil || len(nonce) != nonceSize {
		return nil, ErrAuthentication
	}
	tag, err := unb64(p.Tag)
	if err != nil {
		return nil, ErrAuthentication
	}
	ciphertext, err := unb64(p.Ciphertext)
	if err != nil {
		return nil, ErrAuthentication
	}

	gcm, err := newGCM(key.Material)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(material []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init GCM: %w", err)
	}
	return gcm, nil
}

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func unb64(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
