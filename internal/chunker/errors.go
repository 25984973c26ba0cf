/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package chunker

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid chunking configuration")
	ErrManifestParse    = errors.New("malformed chunk manifest")
	ErrManifestMismatch = errors.New("chunks do not match manifest")
)
