/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package policy

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/util"
	"github.com/sirupsen/logrus"
)

// DeniedReason is the caller facing reason of every denial.
const DeniedReason = "Policy conditions not met"

// Decision is the outcome of evaluating a policy against an access claim.
// Detail explains a denial for logs; it is empty when access is granted.
// Err is set when the policy could not be evaluated at all, for example
// because the purchase lookup failed. Such a decision is never a grant.
type Decision struct {
	Granted bool
	Reason  string
	Detail  string
	Err     error
}

// PurchaseResolver looks up purchase records for PaymentGated policies.
// It returns nil, nil when the record does not exist.
type PurchaseResolver interface {
	FindByID(ctx context.Context, id string) (*model.PurchaseRecord, error)
}

// Engine builds and evaluates encryption policies.
type Engine struct {
	resolver PurchaseResolver
	now      func() time.Time
	logger   *logrus.Logger
}

// NewEngine creates an Engine. With a nil resolver any non-empty purchase
// record id satisfies a PaymentGated policy.
func NewEngine(resolver PurchaseResolver, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		resolver: resolver,
		now:      time.Now,
		logger:   logger,
	}
}

// ValidatePolicyParams checks that params carry what policyType requires.
func ValidatePolicyParams(policyType model.PolicyType, params model.PolicyParams) error {
	switch policyType {
	case model.PolicyPaymentGated:
		if params.Price == 0 {
			return &ParamsError{Field: "price", Reason: "must be a positive amount"}
		}
		if strings.TrimSpace(params.Seller) == "" {
			return &ParamsError{Field: "seller", Reason: "is required"}
		}
	case model.PolicyTimeLocked:
		if params.UnlockTime.IsZero() {
			return &ParamsError{Field: "unlockTime", Reason: "is required"}
		}
	case model.PolicyAllowlist:
		if len(params.AllowedAddresses) == 0 {
			return &ParamsError{Field: "allowedAddresses", Reason: "must not be empty"}
		}
		if slices.ContainsFunc(params.AllowedAddresses, func(a string) bool { return strings.TrimSpace(a) == "" }) {
			return &ParamsError{Field: "allowedAddresses", Reason: "contains an empty address"}
		}
	case model.PolicyTeeOnly:
		if strings.TrimSpace(params.EnclaveID) == "" {
			return &ParamsError{Field: "enclaveId", Reason: "is required"}
		}
	default:
		return &ParamsError{Field: "type", Reason: "unknown policy type " + string(policyType)}
	}
	return nil
}

// CreatePolicy builds the rule list for policyType. The caller binds the policy id.
func (e *Engine) CreatePolicy(policyType model.PolicyType, params model.PolicyParams) (*model.EncryptionPolicy, error) {
	if err := ValidatePolicyParams(policyType, params); err != nil {
		return nil, err
	}

	var rule model.Rule
	switch policyType {
	case model.PolicyPaymentGated:
		rule = model.Rule{Kind: model.RulePurchaseRecord, Seller: params.Seller, Price: params.Price}
	case model.PolicyTimeLocked:
		rule = model.Rule{Kind: model.RuleUnlockTime, UnlockAt: params.UnlockTime.UTC()}
	case model.PolicyAllowlist:
		addrs := make([]string, len(params.AllowedAddresses))
		for i, a := range params.AllowedAddresses {
			addrs[i] = normalizeAddress(a)
		}
		rule = model.Rule{Kind: model.RuleAllowlist, Addresses: addrs}
	case model.PolicyTeeOnly:
		rule = model.Rule{Kind: model.RuleEnclave, EnclaveID: params.EnclaveID}
	}

	return &model.EncryptionPolicy{
		Type:      policyType,
		Rules:     []model.Rule{rule},
		CreatedAt: e.now().UTC(),
	}, nil
}

// Evaluate grants access only if every rule of p holds for claim.
func (e *Engine) Evaluate(ctx context.Context, p *model.EncryptionPolicy, claim model.AccessClaim) Decision {
	if p == nil || len(p.Rules) == 0 {
		return deny("policy has no rules")
	}
	for _, rule := range p.Rules {
		detail, ok, err := e.evaluateRule(ctx, p, rule, claim)
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"policy_id": p.ID,
				"rule":      rule.Kind,
			}).Errorf("policy evaluation failed: %v", err)
			d := deny(detail)
			d.Err = err
			return d
		}
		if !ok {
			e.logger.WithFields(logrus.Fields{
				"policy_id": p.ID,
				"rule":      rule.Kind,
				"requester": claim.RequesterAddress,
			}).Info("access denied: " + detail)
			return deny(detail)
		}
	}
	return Decision{Granted: true}
}

func (e *Engine) evaluateRule(ctx context.Context, p *model.EncryptionPolicy, rule model.Rule, claim model.AccessClaim) (string, bool, error) {
	switch rule.Kind {
	case model.RulePurchaseRecord:
		return e.evaluatePurchase(ctx, p, rule, claim)
	case model.RuleUnlockTime:
		if claim.PresentedTime.Before(rule.UnlockAt) {
			return "asset is still time locked", false, nil
		}
		return "", true, nil
	case model.RuleAllowlist:
		allowed := util.NewSet[string]()
		for _, a := range rule.Addresses {
			allowed.Add(normalizeAddress(a))
		}
		if !allowed.Has(normalizeAddress(claim.RequesterAddress)) {
			return "requester is not on the allowlist", false, nil
		}
		return "", true, nil
	case model.RuleEnclave:
		if claim.Attestation == nil {
			return "attestation required", false, nil
		}
		if claim.Attestation.ModuleID != rule.EnclaveID {
			return "attestation enclave does not match", false, nil
		}
		return "", true, nil
	default:
		return "unknown rule kind " + string(rule.Kind), false, nil
	}
}

// evaluatePurchase checks the claimed purchase record. A record is bound to
// its buyer, compared case-insensitively with the requester.
func (e *Engine) evaluatePurchase(ctx context.Context, p *model.EncryptionPolicy, rule model.Rule, claim model.AccessClaim) (string, bool, error) {
	if claim.PurchaseRecordID == "" {
		return "purchase record required", false, nil
	}
	if e.resolver == nil {
		return "", true, nil
	}

	rec, err := e.resolver.FindByID(ctx, claim.PurchaseRecordID)
	if err != nil {
		return "purchase record lookup failed", false, fmt.Errorf("%w: %s: %v", ErrPurchaseLookup, claim.PurchaseRecordID, err)
	}
	switch {
	case rec == nil:
		return "purchase record not found", false, nil
	case rec.PolicyID != "" && rec.PolicyID != p.ID:
		return "purchase record is for another policy", false, nil
	case rec.Buyer != "" && normalizeAddress(rec.Buyer) != normalizeAddress(claim.RequesterAddress):
		return "purchase record belongs to another buyer", false, nil
	case rec.Seller != rule.Seller:
		return "purchase record seller does not match", false, nil
	case rec.Price < rule.Price:
		return "purchase record price below policy price", false, nil
	case rec.Expired(claim.PresentedTime):
		return "purchase record expired", false, nil
	case rec.Exhausted():
		return "purchase record has no uses left", false, nil
	}
	return "", true, nil
}

func deny(detail string) Decision {
	return Decision{Granted: false, Reason: DeniedReason, Detail: detail}
}

func normalizeAddress(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}
