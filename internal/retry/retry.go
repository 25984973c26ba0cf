/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/sirupsen/logrus"
)

// Manager runs a fallible operation up to MaxRetries times with exponential
// backoff between attempts. Attempts are strictly sequential.
type Manager struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxJitter  time.Duration
	logger     *logrus.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

func NewManager(cfg config.RetryConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		maxJitter:  cfg.MaxJitter,
		logger:     cfg.Logger,
		sleep:      sleepContext,
		jitter:     randomJitter,
	}
}

// MaxRetries returns the total number of attempts made before giving up.
func (m *Manager) MaxRetries() int {
	return m.maxRetries
}

// Do calls op until it succeeds, returns a permanent error, or the attempt
// budget is spent. The last error is returned as produced by op.
func (m *Manager) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, m, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute is the value returning form of Manager.Do.
func Execute[T any](ctx context.Context, m *Manager, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if attempt == m.maxRetries {
			break
		}
		delay := m.Delay(attempt)
		m.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Debugf("operation failed, retrying: %v", err)
		if err := m.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// Delay returns the backoff applied after the given failed attempt (1-based):
// min(base * 2^(attempt-1) + jitter, maxDelay).
func (m *Manager) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := m.maxDelay
	if shift := attempt - 1; shift < 32 {
		if exp := m.baseDelay << shift; exp > 0 && exp>>shift == m.baseDelay {
			d = exp
		}
	}
	if m.maxJitter > 0 {
		d += m.jitter(m.maxJitter)
	}
	if d > m.maxDelay || d < 0 {
		d = m.maxDelay
	}
	return d
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retriable. The Manager returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	return time.Duration(rand.Int64N(int64(max)))
}
