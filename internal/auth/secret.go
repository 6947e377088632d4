package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// SecretBox encrypts small secrets (TOTP seeds) at rest with AES-256-GCM
// under a key derived from the server secret.
type SecretBox struct {
	passphrase string
}

func NewSecretBox(passphrase string) (*SecretBox, error) {
	if passphrase == "" {
		return nil, errors.New("secret box: empty passphrase")
	}
	return &SecretBox{passphrase: passphrase}, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext and returns it base64 encoded.
func (b *SecretBox) Seal(plaintext string) (string, error) {
	out, err := b.SealBytes([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (b *SecretBox) Open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed secret: %w", err)
	}
	plaintext, err := b.OpenBytes(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// SealBytes encrypts plaintext. Output is [salt][nonce][ciphertext].
func (b *SecretBox) SealBytes(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := newGCM(deriveKey(b.passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// OpenBytes reverses SealBytes.
func (b *SecretBox) OpenBytes(data []byte) ([]byte, error) {
	if len(data) < saltSize+nonceSize {
		return nil, errors.New("sealed secret too small")
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	gcm, err := newGCM(deriveKey(b.passphrase, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[saltSize+nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
