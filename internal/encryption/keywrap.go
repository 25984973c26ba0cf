/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package encryption

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	masterKeySize = 32
	wrapInfo      = "satya-dek-wrap:"
)

// KeyWrapper seals DEKs for storage at rest. Each policy gets its own
// key-encryption key derived from the master secret, and the policy id is
// bound as associated data.
type KeyWrapper struct {
	master []byte
}

func NewKeyWrapper(master []byte) (*KeyWrapper, error) {
	if len(master) < masterKeySize {
		return nil, fmt.Errorf("%w: master key must be at least %d bytes", ErrInvalidKeyLength, masterKeySize)
	}
	return &KeyWrapper{master: append([]byte(nil), master...)}, nil
}

func (w *KeyWrapper) kek(policyID string) ([]byte, error) {
	kek := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, w.master, nil, []byte(wrapInfo+policyID))
	if _, err := io.ReadFull(r, kek); err != nil {
		return nil, fmt.Errorf("derive key-encryption key: %w", err)
	}
	return kek, nil
}

// Wrap returns nonce || ciphertext of dek.
func (w *KeyWrapper) Wrap(policyID string, dek []byte) ([]byte, error) {
	if len(dek) != DEKSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(dek), DEKSize)
	}
	kek, err := w.kek(policyID)
	if err != nil {
		return nil, err
	}
	defer SecureClear(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("create wrapping cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+DEKSize+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate wrapping nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, dek, []byte(policyID)), nil
}

// Unwrap reverses Wrap. The caller owns the returned DEK and must clear it.
func (w *KeyWrapper) Unwrap(policyID string, wrapped []byte) ([]byte, error) {
	kek, err := w.kek(policyID)
	if err != nil {
		return nil, err
	}
	defer SecureClear(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("create wrapping cipher: %w", err)
	}
	if len(wrapped) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: wrapped key too short", ErrKeyUnwrap)
	}
	nonce, sealed := wrapped[:aead.NonceSize()], wrapped[aead.NonceSize():]
	dek, err := aead.Open(nil, nonce, sealed, []byte(policyID))
	if err != nil {
		return nil, ErrKeyUnwrap
	}
	if len(dek) != DEKSize {
		SecureClear(dek)
		return nil, fmt.Errorf("%w: unwrapped key has %d bytes", ErrKeyUnwrap, len(dek))
	}
	return dek, nil
}
