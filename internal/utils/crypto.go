package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
)

// Encrypt seals plain text with AES-GCM and returns it base64 encoded.
// Tokens are only ever stored in this form.
func Encrypt(plainText, keyString string) (string, error) {
	aesGCM, err := newGCM(keyString)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encryptedText, keyString string) (string, error) {
	aesGCM, err := newGCM(keyString)
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(encryptedText)
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := aesGCM.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func newGCM(keyString string) (cipher.AEAD, error) {
	key, err := getKeyBytes(keyString)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

func getKeyBytes(keyString string) ([]byte, error) {
	if len(keyString) == 64 {
		return hex.DecodeString(keyString)
	}

	if len(keyString) == 32 || len(keyString) == 24 || len(keyString) == 16 {
		return []byte(keyString), nil
	}
	return nil, errors.New("invalid key length: must be 32 bytes (raw) or 64 hex chars")
}
