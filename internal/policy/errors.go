/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package policy

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPolicyParams = errors.New("invalid policy parameters")
	ErrPurchaseLookup      = errors.New("purchase record lookup failed")
)

// ParamsError names the policy parameter that failed validation.
type ParamsError struct {
	Field  string
	Reason string
}

func (e *ParamsError) Error() string {
	return fmt.Sprintf("invalid policy parameter %q: %s", e.Field, e.Reason)
}

func (e *ParamsError) Is(target error) bool {
	return target == ErrInvalidPolicyParams
}
