/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

type PolicyType string

const (
	PolicyPaymentGated PolicyType = "PaymentGated"
	PolicyTimeLocked   PolicyType = "TimeLocked"
	PolicyAllowlist    PolicyType = "Allowlist"
	PolicyTeeOnly      PolicyType = "TeeOnly"
)

// Valid reports whether t names a known policy type.
func (t PolicyType) Valid() bool {
	switch t {
	case PolicyPaymentGated, PolicyTimeLocked, PolicyAllowlist, PolicyTeeOnly:
		return true
	}
	return false
}

type RuleKind string

const (
	RulePurchaseRecord RuleKind = "purchase_record"
	RuleUnlockTime     RuleKind = "unlock_time"
	RuleAllowlist      RuleKind = "allowlist"
	RuleEnclave        RuleKind = "enclave"
)

// Rule is one condition of a policy. Only the fields relevant to Kind are set.
type Rule struct {
	Kind      RuleKind  `json:"kind"`
	Seller    string    `json:"seller,omitempty"`
	Price     uint64    `json:"price,omitempty"`
	UnlockAt  time.Time `json:"unlockAt,omitempty"`
	Addresses []string  `json:"addresses,omitempty"`
	EnclaveID string    `json:"enclaveId,omitempty"`
}

// EncryptionPolicy is immutable once created. All rules must hold for access.
type EncryptionPolicy struct {
	ID        string     `json:"id"`
	Type      PolicyType `json:"type"`
	Rules     []Rule     `json:"rules"`
	CreatedAt time.Time  `json:"createdAt"`
}

// PolicyParams carries the inputs to policy construction.
type PolicyParams struct {
	Price            uint64
	Seller           string
	UnlockTime       time.Time
	AllowedAddresses []string
	EnclaveID        string
}

// AccessClaim is the set of facts evaluated against a policy.
type AccessClaim struct {
	PurchaseRecordID string
	RequesterAddress string
	PresentedTime    time.Time
	Attestation      *AttestationDocument
}
