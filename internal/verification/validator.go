/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verification

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/subtle"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/util"
	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
	"github.com/veraison/go-cose"
)

// attestationPayload is the CBOR map signed by the enclave.
type attestationPayload struct {
	ModuleID  string         `cbor:"module_id"`
	Timestamp int64          `cbor:"timestamp"`
	PCRs      map[int][]byte `cbor:"pcrs"`
	PublicKey []byte         `cbor:"public_key,omitempty"`
	UserData  []byte         `cbor:"user_data,omitempty"`
	Nonce     []byte         `cbor:"nonce,omitempty"`
}

func payloadOf(doc *model.AttestationDocument) attestationPayload {
	return attestationPayload{
		ModuleID:  doc.ModuleID,
		Timestamp: doc.Timestamp.UnixMilli(),
		PCRs:      map[int][]byte{0: doc.PCR0, 1: doc.PCR1, 2: doc.PCR2},
		PublicKey: doc.PublicKey,
		UserData:  doc.UserData,
		Nonce:     doc.Nonce,
	}
}

// Validator checks attestation documents against the known-good PCR set and
// verifies their COSE_Sign1 signature with the embedded leaf certificate.
type Validator struct {
	pcrs   PCRSet
	roots  *x509.CertPool
	now    func() time.Time
	logger *logrus.Logger
}

// NewValidator loads the PCR set and, when configured, the PEM root
// certificates the leaf must chain to.
func NewValidator(cfg config.AttestationConfig) (*Validator, error) {
	cfg.ApplyDefaults()
	pcrs, err := LoadPCRSet(cfg.KnownPCRsPath)
	if err != nil {
		return nil, err
	}
	v := &Validator{pcrs: pcrs, now: time.Now, logger: cfg.Logger}
	if cfg.RootCertsPath != "" {
		pem, err := os.ReadFile(cfg.RootCertsPath)
		if err != nil {
			return nil, fmt.Errorf("read root certificates %s: %w", cfg.RootCertsPath, err)
		}
		v.roots = x509.NewCertPool()
		if !v.roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.RootCertsPath)
		}
	} else {
		cfg.Logger.Warn("no attestation root certificates configured, certificate chains are not checked")
	}
	return v, nil
}

// NewValidatorWith builds a Validator from an explicit PCR set and root pool.
// A nil pool skips chain verification.
func NewValidatorWith(pcrs PCRSet, roots *x509.CertPool, logger *logrus.Logger) *Validator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Validator{pcrs: pcrs, roots: roots, now: time.Now, logger: logger}
}

// Validate checks doc. When expectedUserData is non-nil the document's user
// data must equal it.
func (v *Validator) Validate(doc *model.AttestationDocument, expectedUserData []byte) error {
	if doc == nil {
		return ErrMissingDocument
	}
	if !v.pcrs.Matches(doc) {
		return ErrPCRMismatch
	}

	cert, err := x509.ParseCertificate(doc.Certificate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCertificate, err)
	}
	if v.roots != nil {
		at := doc.Timestamp
		if at.IsZero() {
			at = v.now()
		}
		_, err := cert.Verify(x509.VerifyOptions{
			Roots:       v.roots,
			CurrentTime: at,
			KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCertificate, err)
		}
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(doc.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
	verifier, err := cose.NewVerifier(alg, cert.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}

	var signed attestationPayload
	if err := cbor.Unmarshal(msg.Payload, &signed); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadMismatch, err)
	}
	if v.logger.IsLevelEnabled(logrus.DebugLevel) {
		if pretty, err := util.RenderCBOR(msg.Payload); err == nil {
			v.logger.Debugf("attestation payload:\n%s", pretty)
		}
	}
	if !signed.matches(payloadOf(doc)) {
		return ErrPayloadMismatch
	}

	if expectedUserData != nil && subtle.ConstantTimeCompare(expectedUserData, doc.UserData) != 1 {
		return ErrUserDataMismatch
	}
	return nil
}

func (p attestationPayload) matches(o attestationPayload) bool {
	if p.ModuleID != o.ModuleID || p.Timestamp != o.Timestamp || len(p.PCRs) != len(o.PCRs) {
		return false
	}
	for i, v := range o.PCRs {
		if !bytes.Equal(p.PCRs[i], v) {
			return false
		}
	}
	return bytes.Equal(p.PublicKey, o.PublicKey) &&
		bytes.Equal(p.UserData, o.UserData) &&
		bytes.Equal(p.Nonce, o.Nonce)
}

// SignDocument fills doc.Signature with an ES256 COSE_Sign1 over the
// document's claimed fields. The enclave side and tests use it.
func SignDocument(doc *model.AttestationDocument, key crypto.Signer) error {
	payload, err := cbor.Marshal(payloadOf(doc))
	if err != nil {
		return fmt.Errorf("encode attestation payload: %w", err)
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return fmt.Errorf("create attestation signer: %w", err)
	}
	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: cose.AlgorithmES256,
		},
	}
	sig, err := cose.Sign1(rand.Reader, signer, headers, payload, nil)
	if err != nil {
		return fmt.Errorf("sign attestation payload: %w", err)
	}
	doc.Signature = sig
	return nil
}
