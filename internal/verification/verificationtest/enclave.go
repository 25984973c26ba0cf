/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package verificationtest provides a software enclave that issues signed
// attestation documents for tests.
package verificationtest

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/verification"
)

// Enclave signs attestation documents with a leaf key certified by its own root.
type Enclave struct {
	ModuleID string
	PCRs     verification.PCRSet
	Roots    *x509.CertPool

	key  *ecdsa.PrivateKey
	leaf []byte
}

// DevPCRs matches the embedded development PCR set.
func DevPCRs() verification.PCRSet {
	return verification.PCRSet{
		PCR0: bytes.Repeat([]byte{0x00}, 48),
		PCR1: bytes.Repeat([]byte{0x01}, 48),
		PCR2: bytes.Repeat([]byte{0x02}, 48),
	}
}

func NewEnclave(t testing.TB, moduleID string) *Enclave {
	t.Helper()
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	now := time.Now()
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test attestation root"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	if err != nil {
		t.Fatalf("CreateCertificate error: %v", err)
	}
	root, err := x509.ParseCertificate(rootDER)
	if err != nil {
		t.Fatalf("ParseCertificate error: %v", err)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: moduleID},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, root, &leafKey.PublicKey, rootKey)
	if err != nil {
		t.Fatalf("CreateCertificate error: %v", err)
	}

	roots := x509.NewCertPool()
	roots.AddCert(root)
	return &Enclave{
		ModuleID: moduleID,
		PCRs:     DevPCRs(),
		Roots:    roots,
		key:      leafKey,
		leaf:     leafDER,
	}
}

// Attest returns a signed document carrying userData.
func (e *Enclave) Attest(t testing.TB, userData []byte) *model.AttestationDocument {
	t.Helper()
	doc := &model.AttestationDocument{
		ModuleID:    e.ModuleID,
		PCR0:        bytes.Clone(e.PCRs.PCR0),
		PCR1:        bytes.Clone(e.PCRs.PCR1),
		PCR2:        bytes.Clone(e.PCRs.PCR2),
		UserData:    bytes.Clone(userData),
		Nonce:       []byte("nonce"),
		Timestamp:   time.Now().UTC().Truncate(time.Millisecond),
		Certificate: bytes.Clone(e.leaf),
	}
	if err := verification.SignDocument(doc, e.key); err != nil {
		t.Fatalf("SignDocument error: %v", err)
	}
	return doc
}

// Validator returns a validator that trusts this enclave.
func (e *Enclave) Validator() *verification.Validator {
	return verification.NewValidatorWith(e.PCRs, e.Roots, nil)
}
