/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var errTransient = errors.New("transient")

func newTestManager(maxRetries int) (*Manager, *[]time.Duration) {
	m := NewManager(config.RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		MaxJitter:  time.Second,
	})
	var slept []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	m.jitter = func(time.Duration) time.Duration { return 0 }
	return m, &slept
}

func TestRetry_AlwaysFails(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxRetries := rapid.IntRange(1, 8).Draw(rt, "maxRetries")
		m, slept := newTestManager(maxRetries)

		calls := 0
		err := m.Do(context.Background(), func(context.Context) error {
			calls++
			return errTransient
		})
		if err != errTransient {
			rt.Fatalf("expected the original error, got %v", err)
		}
		if calls != maxRetries {
			rt.Fatalf("expected %d attempts, got %d", maxRetries, calls)
		}
		if len(*slept) != maxRetries-1 {
			rt.Fatalf("expected %d sleeps, got %d", maxRetries-1, len(*slept))
		}
	})
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxRetries := rapid.IntRange(2, 8).Draw(rt, "maxRetries")
		k := rapid.IntRange(0, maxRetries-1).Draw(rt, "failures")
		m, _ := newTestManager(maxRetries)

		calls := 0
		v, err := Execute(context.Background(), m, func(context.Context) (string, error) {
			calls++
			if calls <= k {
				return "", errTransient
			}
			return "ok", nil
		})
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if v != "ok" {
			rt.Fatalf("unexpected value %q", v)
		}
		if calls != k+1 {
			rt.Fatalf("expected %d attempts, got %d", k+1, calls)
		}
	})
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	m, slept := newTestManager(5)
	errBad := errors.New("bad manifest")

	calls := 0
	err := m.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errBad)
	})
	assert.Equal(t, errBad, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRetry_BackoffSchedule(t *testing.T) {
	m, slept := newTestManager(4)
	_ = m.Do(context.Background(), func(context.Context) error { return errTransient })
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, *slept)
}

func TestRetry_DelayIsCapped(t *testing.T) {
	m, _ := newTestManager(3)
	m.jitter = func(max time.Duration) time.Duration { return max - 1 }

	assert.Equal(t, 30*time.Second, m.Delay(20))
	assert.Equal(t, 30*time.Second, m.Delay(200))
	assert.Equal(t, 100*time.Millisecond+time.Second-1, m.Delay(1))
}

func TestRetry_CancelDuringBackoff(t *testing.T) {
	m := NewManager(config.RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxJitter: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- m.Do(ctx, func(context.Context) error {
			calls++
			return errTransient
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatalf("retry did not observe cancellation")
	}
}
