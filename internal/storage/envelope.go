/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Storage envelope layout:
//
//	[4 bytes little-endian header length][header JSON {dek_base64, iv_base64}][ciphertext]
//
// The envelope key is an AES-128-GCM key independent of the payload DEK.
const (
	envelopeKeySize      = 16
	envelopeNonceSize    = 12
	envelopeMinHeaderLen = 10
	envelopeMaxHeaderLen = 1000
)

type envelopeHeader struct {
	DEK string `json:"dek_base64"`
	IV  string `json:"iv_base64"`
}

// SealEnvelope encrypts data under a fresh envelope key and frames it.
func SealEnvelope(data []byte) ([]byte, error) {
	key := make([]byte, envelopeKeySize)
	iv := make([]byte, envelopeNonceSize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate envelope key: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate envelope nonce: %w", err)
	}

	aead, err := newEnvelopeAEAD(key)
	if err != nil {
		return nil, err
	}
	header, err := json.Marshal(envelopeHeader{
		DEK: base64.StdEncoding.EncodeToString(key),
		IV:  base64.StdEncoding.EncodeToString(iv),
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope header: %w", err)
	}

	out := make([]byte, 4, 4+len(header)+len(data)+aead.Overhead())
	binary.LittleEndian.PutUint32(out, uint32(len(header)))
	out = append(out, header...)
	return aead.Seal(out, iv, data, nil), nil
}

// OpenEnvelope unwraps buf if it is a storage envelope. A buffer that does not
// parse as an envelope is returned unchanged with enveloped == false, and the
// reason is logged. A well formed envelope that fails authentication is an error.
func OpenEnvelope(buf []byte, logger *logrus.Logger) (data []byte, enveloped bool, err error) {
	if logger == nil {
		logger = logrus.New()
	}
	raw := func(reason string) ([]byte, bool, error) {
		logger.WithField("size", len(buf)).Debugf("treating blob as raw bytes: %s", reason)
		return buf, false, nil
	}

	if len(buf) < 4 {
		return raw("shorter than envelope length prefix")
	}
	headerLen := int(binary.LittleEndian.Uint32(buf[:4]))
	if headerLen < envelopeMinHeaderLen || headerLen > envelopeMaxHeaderLen {
		return raw("implausible envelope header length")
	}
	if len(buf) < 4+headerLen {
		return raw("truncated envelope header")
	}

	var header envelopeHeader
	if err := json.Unmarshal(buf[4:4+headerLen], &header); err != nil {
		logger.Warnf("envelope header is not valid JSON, treating blob as raw bytes: %v", err)
		return buf, false, nil
	}
	if header.DEK == "" || header.IV == "" {
		logger.Warn("envelope header lacks key material, treating blob as raw bytes")
		return buf, false, nil
	}
	key, kerr := base64.StdEncoding.DecodeString(header.DEK)
	iv, ierr := base64.StdEncoding.DecodeString(header.IV)
	if kerr != nil || ierr != nil || len(key) != envelopeKeySize || len(iv) != envelopeNonceSize {
		logger.Warn("envelope header key material is malformed, treating blob as raw bytes")
		return buf, false, nil
	}

	aead, err := newEnvelopeAEAD(key)
	if err != nil {
		return nil, true, err
	}
	plain, err := aead.Open(nil, iv, buf[4+headerLen:], nil)
	if err != nil {
		return nil, true, ErrEnvelopeCorrupt
	}
	return plain, true, nil
}

func newEnvelopeAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create envelope cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
