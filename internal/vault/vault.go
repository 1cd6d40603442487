// Package vault provides reversible encryption of card numbers at rest.
//
// Encryption is deliberately deterministic: storage enforces uniqueness of
// card numbers by comparing ciphertexts, which requires equal plaintexts to
// map to equal ciphertexts. Card numbers are short, high-entropy strings, so
// no block pattern survives to leak.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

// Vault encrypts and decrypts card numbers with a fixed process-wide key
// loaded at startup. Any key or algorithm error is a misconfiguration, not a
// business failure.
type Vault struct {
	block cipher.Block
}

// New builds a vault from an AES key (16, 24 or 32 bytes).
func New(key []byte) (*Vault, error) {
	if l := len(key); l != 16 && l != 24 && l != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes, got %d", l)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Vault{block: block}, nil
}

// Encrypt returns the base64 ciphertext of plaintext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext is empty")
	}

	data := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		v.block.Encrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", fmt.Errorf("ciphertext is empty")
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("invalid ciphertext length: %d bytes", len(data))
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		v.block.Decrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}

	out, err = unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// pad applies PKCS#7 padding.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips and verifies PKCS#7 padding.
func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding value: %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding bytes")
		}
	}
	return data[:len(data)-n], nil
}
