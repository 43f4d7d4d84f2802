package secure

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt is returned for malformed ciphertext, a wrong key or tampered data.
var ErrDecrypt = errors.New("decryption failed")

// Encrypt seals plaintext with XChaCha20-Poly1305 under a random 24-byte
// nonce. The result is "base64(nonce):base64(ciphertext||tag)".
func Encrypt(key []byte, plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating random nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(nonce) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(key []byte, data string) (string, error) {
	encodedNonce, encodedSealed, ok := strings.Cut(data, ":")
	if !ok {
		return "", fmt.Errorf("%w: missing separator", ErrDecrypt)
	}

	nonce, err := base64.StdEncoding.DecodeString(encodedNonce)
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("%w: bad nonce", ErrDecrypt)
	}
	sealed, err := base64.StdEncoding.DecodeString(encodedSealed)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrDecrypt)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}
