/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cache

import (
	"sync"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/sirupsen/logrus"
)

type entry struct {
	data      []byte
	timestamp time.Time
}

// Stats is a point-in-time view of the cache occupancy.
type Stats struct {
	Entries     int     `json:"entries"`
	SizeBytes   int64   `json:"sizeBytes"`
	MaxBytes    int64   `json:"maxBytes"`
	Utilization float64 `json:"utilization"` // percent of MaxBytes in use
}

// Manager is a size bounded byte cache with a fixed TTL.
// Expired entries are dropped lazily on read; when room is needed the entry
// with the oldest insertion time is evicted first.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	current int64
	max     int64
	ttl     time.Duration
	now     func() time.Time
	logger  *logrus.Logger
}

func NewManager(cfg config.CacheConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		entries: make(map[string]*entry),
		max:     cfg.MaxSizeBytes,
		ttl:     cfg.TTL,
		now:     time.Now,
		logger:  cfg.Logger,
	}
}

// Get returns the cached bytes for key. The returned slice must not be modified.
func (m *Manager) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.timestamp) > m.ttl {
		m.removeLocked(key, e)
		return nil, false
	}
	return e.data, true
}

// Set stores data under key. Items larger than the whole cache are ignored.
func (m *Manager) Set(key string, data []byte) {
	size := int64(len(data))
	if size > m.max {
		m.logger.WithFields(logrus.Fields{
			"key":  key,
			"size": size,
			"max":  m.max,
		}).Warn("item larger than cache capacity, not caching")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[key]; ok {
		m.removeLocked(key, old)
	}
	for m.current+size > m.max {
		if !m.evictOldestLocked() {
			break
		}
	}
	m.entries[key] = &entry{data: data, timestamp: m.now()}
	m.current += size
}

func (m *Manager) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		m.removeLocked(key, e)
	}
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
	m.current = 0
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Entries:     len(m.entries),
		SizeBytes:   m.current,
		MaxBytes:    m.max,
		Utilization: float64(m.current) / float64(m.max) * 100,
	}
}

func (m *Manager) removeLocked(key string, e *entry) {
	delete(m.entries, key)
	m.current -= int64(len(e.data))
}

// evictOldestLocked scans every entry for the minimum timestamp.
func (m *Manager) evictOldestLocked() bool {
	var (
		oldestKey string
		oldest    *entry
	)
	for k, e := range m.entries {
		if oldest == nil || e.timestamp.Before(oldest.timestamp) {
			oldestKey, oldest = k, e
		}
	}
	if oldest == nil {
		return false
	}
	m.logger.WithField("key", oldestKey).Debug("evicting cache entry")
	m.removeLocked(oldestKey, oldest)
	return true
}
