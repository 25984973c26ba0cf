/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package walrus

import "errors"

var (
	ErrNotConfigured   = errors.New("blob network endpoint not configured")
	ErrBlobNotFound    = errors.New("blob not found")
	ErrUnavailable     = errors.New("blob network unavailable")
	ErrRequestRejected = errors.New("blob network rejected request")
	ErrBadResponse     = errors.New("unexpected blob network response")
)
