package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// SealedPrefix marks values produced by Seal so stored metadata can carry
// sealed and plain values side by side.
const SealedPrefix = "sealed:v1:"

const sealingSalt = "satecha-metadata-sealing"

var sealingKey []byte

var ErrSealingNotConfigured = errors.New("sealing not configured")

func ConfigureSealing(secret string) {
	if secret == "" {
		sealingKey = nil
		return
	}
	reader := hkdf.New(sha256.New, []byte(secret), []byte(sealingSalt), []byte("metadata-key"))
	sealingKey = make([]byte, 32)
	if _, err := io.ReadFull(reader, sealingKey); err != nil {
		panic(fmt.Sprintf("failed to derive sealing key: %v", err))
	}
}

func newGCM() (cipher.AEAD, error) {
	if sealingKey == nil {
		return nil, ErrSealingNotConfigured
	}
	block, err := aes.NewCipher(sealingKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM and returns a prefixed base64 string.
func Seal(plaintext string) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

func Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", errors.New("value is not sealed")
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}
