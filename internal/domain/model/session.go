/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// SessionMetadata is bound to an (address, scope) pair.
type SessionMetadata struct {
	SessionID  string    `cbor:"-"`
	Address    string    `cbor:"1,keyasint"`
	ScopeID    string    `cbor:"2,keyasint"`
	CreatedAt  time.Time `cbor:"3,keyasint"`
	ExpiresAt  time.Time `cbor:"4,keyasint"`
	LastUsed   time.Time `cbor:"5,keyasint"`
	UsageCount uint64    `cbor:"6,keyasint"`
	IsActive   bool      `cbor:"7,keyasint"`
}

// Valid reports whether the session is active and unexpired at now.
func (s *SessionMetadata) Valid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
