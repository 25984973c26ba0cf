/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package encryption

import (
	"bytes"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type cachedDEK struct {
	mu  sync.Mutex
	dek []byte
}

// DEKCache holds plaintext DEKs for a bounded number of policies.
// It stores and returns copies; the cached copy is cleared when evicted.
// Reads do not refresh an entry, so a full cache evicts the entry that was
// set longest ago.
type DEKCache struct {
	lru *expirable.LRU[string, *cachedDEK]
}

// NewDEKCache creates a cache for capacity keys. ttl <= 0 disables expiry.
func NewDEKCache(capacity int, ttl time.Duration) *DEKCache {
	if capacity <= 0 {
		capacity = 1
	}
	onEvict := func(_ string, e *cachedDEK) {
		e.mu.Lock()
		SecureClear(e.dek)
		e.dek = nil
		e.mu.Unlock()
	}
	return &DEKCache{lru: expirable.NewLRU[string, *cachedDEK](capacity, onEvict, ttl)}
}

func (c *DEKCache) Set(key string, dek []byte) {
	c.lru.Remove(key)
	c.lru.Add(key, &cachedDEK{dek: bytes.Clone(dek)})
}

// Get returns a copy of the cached DEK, which the caller must clear.
func (c *DEKCache) Get(key string) ([]byte, bool) {
	e, ok := c.lru.Peek(key)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dek == nil {
		return nil, false
	}
	return bytes.Clone(e.dek), true
}

// Delete drops the cached copy. Copies previously returned by Get are untouched.
func (c *DEKCache) Delete(key string) {
	c.lru.Remove(key)
}

func (c *DEKCache) Len() int {
	return c.lru.Len()
}

func (c *DEKCache) Purge() {
	c.lru.Purge()
}
