/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package encryption

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/service"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/policy"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/session"
	"github.com/sirupsen/logrus"
)

const policyIDPrefix = "policy"

// DecryptRequest carries a ciphertext and the access claim presented for it.
type DecryptRequest struct {
	Ciphertext       []byte
	EncryptedDEK     []byte
	IV               []byte
	PolicyID         string
	PurchaseRecordID string
	RequesterAddress string
	Attestation      *model.AttestationDocument
}

// DecryptResult reports the outcome of a decryption attempt. A policy denial
// is reported here with AccessGranted == false, not as an error.
type DecryptResult struct {
	Success       bool
	AccessGranted bool
	Data          []byte
	Error         string
	Reason        string
}

type BatchFile struct {
	Name string
	Data []byte
}

// BatchResult is the per-file outcome of BatchEncrypt.
type BatchResult struct {
	Name    string
	Payload *model.EncryptedPayload
}

// Service encrypts assets under policies and releases plaintext only when the
// policy grants access.
type Service struct {
	engine     *policy.Engine
	policies   service.PolicyRepository
	purchases  service.PurchaseRecordRepository
	wrapper    *KeyWrapper
	deks       *DEKCache
	sessions   *session.Manager
	maxPayload int64
	now        func() time.Time
	logger     *logrus.Logger
}

// NewService wires the encryption orchestrator. purchases may be nil, in which
// case PaymentGated use counts are not recorded.
func NewService(cfg config.EncryptionConfig, engine *policy.Engine, policies service.PolicyRepository, purchases service.PurchaseRecordRepository, sessions *session.Manager) (*Service, error) {
	cfg.ApplyDefaults()
	if engine == nil || policies == nil || sessions == nil {
		return nil, errors.New("encryption service requires a policy engine, policy store and session manager")
	}

	var master []byte
	if cfg.MasterKey != "" {
		k, err := hex.DecodeString(cfg.MasterKey)
		if err != nil {
			return nil, fmt.Errorf("decode master key: %w", err)
		}
		master = k
	} else {
		master = make([]byte, DEKSize)
		if _, err := rand.Read(master); err != nil {
			return nil, fmt.Errorf("generate master key: %w", err)
		}
		cfg.Logger.Warn("no master key configured, wrapped DEKs will not survive a restart")
	}
	wrapper, err := NewKeyWrapper(master)
	SecureClear(master)
	if err != nil {
		return nil, err
	}

	return &Service{
		engine:     engine,
		policies:   policies,
		purchases:  purchases,
		wrapper:    wrapper,
		deks:       NewDEKCache(cfg.DEKCacheCapacity, cfg.DEKCacheTTL),
		sessions:   sessions,
		maxPayload: cfg.MaxPayloadSize,
		now:        time.Now,
		logger:     cfg.Logger,
	}, nil
}

// EncryptData encrypts plaintext under a new policy. Failures are reported
// with Success == false and nothing is persisted.
func (s *Service) EncryptData(ctx context.Context, plaintext []byte, policyType model.PolicyType, params model.PolicyParams) (*model.EncryptedPayload, error) {
	if err := ValidateEncryptionParams(plaintext, nil, s.maxPayload); err != nil {
		return failedPayload(err), err
	}
	p, err := s.engine.CreatePolicy(policyType, params)
	if err != nil {
		return failedPayload(err), err
	}
	id, err := GeneratePolicyID(policyIDPrefix)
	if err != nil {
		return failedPayload(err), err
	}
	p.ID = id

	payload, err := s.seal(plaintext, p.ID)
	if err != nil {
		return failedPayload(err), err
	}
	if err := s.policies.Create(ctx, p); err != nil {
		s.deks.Delete(dekCacheKey(p.ID, payload.EncryptedDEK))
		err = fmt.Errorf("store policy %s: %w", p.ID, err)
		return failedPayload(err), err
	}

	s.logger.WithFields(logrus.Fields{
		"policy_id": p.ID,
		"type":      p.Type,
		"size":      len(plaintext),
	}).Info("payload encrypted")
	return payload, nil
}

// seal encrypts plaintext under a fresh DEK bound to policyID.
func (s *Service) seal(plaintext []byte, policyID string) (*model.EncryptedPayload, error) {
	dek, err := GenerateDEK()
	if err != nil {
		return nil, err
	}
	defer SecureClear(dek)

	if err := ValidateEncryptionParams(plaintext, dek, s.maxPayload); err != nil {
		return nil, err
	}
	ciphertext, iv, err := EncryptWithDEK(plaintext, dek)
	if err != nil {
		return nil, err
	}
	wrapped, err := s.wrapper.Wrap(policyID, dek)
	if err != nil {
		return nil, err
	}
	s.deks.Set(dekCacheKey(policyID, wrapped), dek)

	return &model.EncryptedPayload{
		Success:       true,
		EncryptedData: ciphertext,
		EncryptedDEK:  wrapped,
		IV:            iv,
		PolicyID:      policyID,
	}, nil
}

// DecryptData evaluates the policy for the presented claim and decrypts only
// on a grant. The returned error is non-nil only for failures other than a
// policy denial.
func (s *Service) DecryptData(ctx context.Context, req DecryptRequest) (*DecryptResult, error) {
	p, err := s.policies.FindByID(ctx, req.PolicyID)
	if err != nil {
		return &DecryptResult{Error: err.Error()}, fmt.Errorf("load policy %s: %w", req.PolicyID, err)
	}
	if p == nil {
		return &DecryptResult{Error: ErrPolicyNotFound.Error()}, fmt.Errorf("%w: %s", ErrPolicyNotFound, req.PolicyID)
	}

	claim := model.AccessClaim{
		PurchaseRecordID: req.PurchaseRecordID,
		RequesterAddress: req.RequesterAddress,
		PresentedTime:    s.now(),
		Attestation:      req.Attestation,
	}
	decision := s.engine.Evaluate(ctx, p, claim)
	if decision.Err != nil {
		return &DecryptResult{Error: decision.Err.Error(), Reason: decision.Detail}, fmt.Errorf("evaluate policy %s: %w", p.ID, decision.Err)
	}
	if !decision.Granted {
		return &DecryptResult{Error: decision.Reason, Reason: decision.Detail}, nil
	}

	// Take the use before touching key material; the guarded update decides
	// whether one remains.
	if p.Type == model.PolicyPaymentGated && s.purchases != nil {
		if err := s.purchases.IncrementUses(ctx, req.PurchaseRecordID); err != nil {
			if errors.Is(err, domain.ErrExhausted) {
				return &DecryptResult{Error: policy.DeniedReason, Reason: "purchase record has no uses left"}, nil
			}
			s.logger.WithField("purchase_id", req.PurchaseRecordID).Errorf("failed to record purchase use: %v", err)
			return &DecryptResult{AccessGranted: true, Error: ErrPurchaseUse.Error()}, fmt.Errorf("%w: %s: %v", ErrPurchaseUse, req.PurchaseRecordID, err)
		}
	}

	dek, err := s.unwrapDEK(p.ID, req.EncryptedDEK)
	if err != nil {
		return &DecryptResult{AccessGranted: true, Error: err.Error()}, err
	}
	defer SecureClear(dek)

	plaintext, err := DecryptWithDEK(req.Ciphertext, dek, req.IV)
	if err != nil {
		return &DecryptResult{AccessGranted: true, Error: err.Error()}, err
	}

	if req.RequesterAddress != "" {
		s.sessions.GetOrCreateSession(req.RequesterAddress, p.ID, 0)
	}
	return &DecryptResult{Success: true, AccessGranted: true, Data: plaintext}, nil
}

func (s *Service) unwrapDEK(policyID string, wrapped []byte) ([]byte, error) {
	key := dekCacheKey(policyID, wrapped)
	if dek, ok := s.deks.Get(key); ok {
		return dek, nil
	}
	dek, err := s.wrapper.Unwrap(policyID, wrapped)
	if err != nil {
		return nil, err
	}
	s.deks.Set(key, dek)
	return dek, nil
}

// BatchEncrypt encrypts every file under one shared policy. Each file gets its
// own DEK. A failing file is reported in its result and does not stop the batch.
func (s *Service) BatchEncrypt(ctx context.Context, files []BatchFile, policyType model.PolicyType, params model.PolicyParams) ([]BatchResult, error) {
	p, err := s.engine.CreatePolicy(policyType, params)
	if err != nil {
		return nil, err
	}
	id, err := GeneratePolicyID(policyIDPrefix)
	if err != nil {
		return nil, err
	}
	p.ID = id

	results := make([]BatchResult, len(files))
	sealed := 0
	for i, f := range files {
		results[i].Name = f.Name
		if err := ctx.Err(); err != nil {
			results[i].Payload = failedPayload(err)
			continue
		}
		payload, err := s.seal(f.Data, p.ID)
		if err != nil {
			s.logger.WithField("file", f.Name).Warnf("batch encryption failed: %v", err)
			results[i].Payload = failedPayload(err)
			continue
		}
		results[i].Payload = payload
		sealed++
	}

	if sealed > 0 {
		if err := s.policies.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("store policy %s: %w", p.ID, err)
		}
	}
	return results, nil
}

// IssueAccessKeys produces the buyer-facing access material for a verified
// purchase: the wrapped DEK, the policy id and a session token scoped to the policy.
func (s *Service) IssueAccessKeys(ctx context.Context, policyID string, encryptedDEK []byte, buyer string) (*model.AccessKeys, error) {
	p, err := s.policies.FindByID(ctx, policyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessKeys, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %w", ErrAccessKeys, ErrPolicyNotFound)
	}
	if len(encryptedDEK) == 0 {
		return nil, fmt.Errorf("%w: missing encrypted DEK", ErrAccessKeys)
	}

	res := s.sessions.GetOrCreateSession(buyer, policyID, 0)
	token, err := s.sessions.IssueToken(res.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessKeys, err)
	}
	return &model.AccessKeys{
		EncryptionKey:    base64.StdEncoding.EncodeToString(encryptedDEK),
		DecryptionPolicy: policyID,
		SessionToken:     token,
	}, nil
}

// DiscardPayload removes the policy and cached DEK created for a payload
// whose ciphertext was never stored.
func (s *Service) DiscardPayload(ctx context.Context, payload *model.EncryptedPayload) error {
	s.deks.Delete(dekCacheKey(payload.PolicyID, payload.EncryptedDEK))
	if err := s.policies.Delete(ctx, payload.PolicyID); err != nil {
		return fmt.Errorf("discard policy %s: %w", payload.PolicyID, err)
	}
	s.logger.WithField("policy_id", payload.PolicyID).Info("payload discarded")
	return nil
}

// CachedKeys reports how many DEKs are cached.
func (s *Service) CachedKeys() int {
	return s.deks.Len()
}

// ForgetKeys drops every cached DEK.
func (s *Service) ForgetKeys() {
	s.deks.Purge()
}

func dekCacheKey(policyID string, wrapped []byte) string {
	sum := sha256.Sum256(wrapped)
	return policyID + ":" + hex.EncodeToString(sum[:8])
}

func failedPayload(err error) *model.EncryptedPayload {
	return &model.EncryptedPayload{Error: err.Error()}
}
