/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInvalid  = errors.New("session expired or inactive")
	ErrInvalidToken    = errors.New("invalid session token")
	ErrInvalidSession  = errors.New("malformed session record")
)
