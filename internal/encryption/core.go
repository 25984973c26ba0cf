/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	DEKSize   = 32
	NonceSize = 12
	TagSize   = 16
	// DefaultMaxPayloadSize is the largest plaintext accepted for encryption.
	DefaultMaxPayloadSize = 100 << 20
)

// GenerateDEK returns a fresh 256-bit data encryption key.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, DEKSize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("generate DEK: %w", err)
	}
	return dek, nil
}

// EncryptWithDEK seals plaintext with AES-256-GCM under a fresh random nonce.
func EncryptWithDEK(plaintext, dek []byte) (ciphertext, iv []byte, err error) {
	aead, err := newAEAD(dek)
	if err != nil {
		return nil, nil, err
	}
	iv = make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nil, iv, plaintext, nil), iv, nil
}

// DecryptWithDEK opens ciphertext produced by EncryptWithDEK.
// Any authentication failure is reported as ErrDecryptionFailed.
func DecryptWithDEK(ciphertext, dek, iv []byte) ([]byte, error) {
	aead, err := newAEAD(dek)
	if err != nil {
		return nil, err
	}
	if len(iv) != NonceSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidIV, len(iv))
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newAEAD(dek []byte) (cipher.AEAD, error) {
	if len(dek) != DEKSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(dek), DEKSize)
	}
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// SecureClear overwrites buf with random bytes and then zeros.
func SecureClear(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_, _ = rand.Read(buf)
	clear(buf)
}

// ValidateEncryptionParams checks the plaintext size and, when given, the DEK length.
// maxSize <= 0 selects DefaultMaxPayloadSize.
func ValidateEncryptionParams(data, dek []byte, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxPayloadSize
	}
	if len(data) == 0 {
		return ErrEmptyData
	}
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(data), maxSize)
	}
	if dek != nil && len(dek) != DEKSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(dek), DEKSize)
	}
	return nil
}

// GeneratePolicyID returns prefix_<hex millisecond timestamp>_<16 hex chars>.
// The id is unique in practice but is not a cryptographic identifier.
func GeneratePolicyID(prefix string) (string, error) {
	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("generate policy id: %w", err)
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 16)
	return prefix + "_" + ts + "_" + hex.EncodeToString(suffix[:]), nil
}

// ContentHash returns the SHA-256 digest of data.
func ContentHash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// VerifyIntegrity compares the digest of data with expected in constant time.
func VerifyIntegrity(data, expected []byte) bool {
	return subtle.ConstantTimeCompare(ContentHash(data), expected) == 1
}
