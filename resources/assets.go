/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package resources

import (
	_ "embed"
)

var (
	// DefaultPCRs is the known-good PCR set of the development enclave image.
	//go:embed default_pcrs.json
	DefaultPCRs []byte
)
