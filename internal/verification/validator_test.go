/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verification_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/verification"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/verification/verificationtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assetHash = []byte("0123456789abcdef0123456789abcdef")

func TestLoadPCRSet_Default(t *testing.T) {
	set, err := verification.LoadPCRSet("")
	require.Nil(t, err)
	assert.Equal(t, verificationtest.DevPCRs(), set)
}

func TestLoadPCRSet_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcrs.json")
	if err := os.WriteFile(path, []byte(`{"pcr0":"aa","pcr1":"bb","pcr2":"cc"}`), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	set, err := verification.LoadPCRSet(path)
	require.Nil(t, err)
	assert.Equal(t, []byte{0xaa}, set.PCR0)

	_, err = verification.ParsePCRSet([]byte(`{"pcr0":"zz","pcr1":"bb","pcr2":"cc"}`))
	assert.ErrorIs(t, err, verification.ErrInvalidPCRSet)
	_, err = verification.ParsePCRSet([]byte(`{"pcr0":"aa"}`))
	assert.ErrorIs(t, err, verification.ErrInvalidPCRSet)
}

func TestNewValidator_Config(t *testing.T) {
	v, err := verification.NewValidator(config.AttestationConfig{})
	require.Nil(t, err)
	assert.NotNil(t, v)

	_, err = verification.NewValidator(config.AttestationConfig{RootCertsPath: filepath.Join(t.TempDir(), "missing.pem")})
	assert.NotNil(t, err)
}

func TestValidator_AcceptsGenuineDocument(t *testing.T) {
	enclave := verificationtest.NewEnclave(t, "enclave-1")
	doc := enclave.Attest(t, assetHash)

	assert.Nil(t, enclave.Validator().Validate(doc, assetHash))
	assert.Nil(t, enclave.Validator().Validate(doc, nil))
}

func TestValidator_Rejections(t *testing.T) {
	enclave := verificationtest.NewEnclave(t, "enclave-1")
	v := enclave.Validator()

	t.Run("missing", func(t *testing.T) {
		assert.ErrorIs(t, v.Validate(nil, nil), verification.ErrMissingDocument)
	})
	t.Run("tampered pcr0", func(t *testing.T) {
		doc := enclave.Attest(t, assetHash)
		doc.PCR0[0] ^= 0xff
		assert.ErrorIs(t, v.Validate(doc, assetHash), verification.ErrPCRMismatch)
	})
	t.Run("user data", func(t *testing.T) {
		doc := enclave.Attest(t, []byte("another asset"))
		assert.ErrorIs(t, v.Validate(doc, assetHash), verification.ErrUserDataMismatch)
	})
	t.Run("claimed field not signed", func(t *testing.T) {
		doc := enclave.Attest(t, assetHash)
		doc.ModuleID = "enclave-2"
		assert.ErrorIs(t, v.Validate(doc, assetHash), verification.ErrPayloadMismatch)
	})
	t.Run("signature", func(t *testing.T) {
		doc := enclave.Attest(t, assetHash)
		doc.Signature[len(doc.Signature)-1] ^= 0x01
		assert.ErrorIs(t, v.Validate(doc, assetHash), verification.ErrSignature)
	})
	t.Run("garbage signature", func(t *testing.T) {
		doc := enclave.Attest(t, assetHash)
		doc.Signature = []byte{0x01, 0x02}
		assert.ErrorIs(t, v.Validate(doc, assetHash), verification.ErrSignature)
	})
	t.Run("certificate", func(t *testing.T) {
		doc := enclave.Attest(t, assetHash)
		doc.Certificate = []byte("not a certificate")
		assert.ErrorIs(t, v.Validate(doc, assetHash), verification.ErrCertificate)
	})
	t.Run("untrusted root", func(t *testing.T) {
		rogue := verificationtest.NewEnclave(t, "enclave-1")
		doc := rogue.Attest(t, assetHash)
		assert.ErrorIs(t, v.Validate(doc, assetHash), verification.ErrCertificate)
	})
}
