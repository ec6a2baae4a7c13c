/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package fleet

import (
	"sync"
	"time"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

// PresenceCacheEntry is the last presence check for one instance.
type PresenceCacheEntry struct {
	Identity  string
	Engaged   bool
	CheckedAt time.Time
}

// PresenceCache holds engagement state for the lifetime of the process.
// It is only refreshed by the keep-alive presence sweep.
type PresenceCache struct {
	mu      sync.Mutex
	entries map[instanceKey]PresenceCacheEntry
	ttl     time.Duration
}

func NewPresenceCache(ttl time.Duration) *PresenceCache {
	return &PresenceCache{
		entries: make(map[instanceKey]PresenceCacheEntry),
		ttl:     ttl,
	}
}

// Get returns the entry and its age at now.
func (p *PresenceCache) Get(deviceID, instanceID string, now time.Time) (PresenceCacheEntry, time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[instanceKey{deviceID, instanceID}]
	if !ok {
		return PresenceCacheEntry{}, 0, false
	}

	return entry, now.Sub(entry.CheckedAt), true
}

// Lookup returns the cached presence for identity on the instance. An entry
// recorded for a different identity reads as not checked.
func (p *PresenceCache) Lookup(deviceID, instanceID, identity string) models.Presence {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[instanceKey{deviceID, instanceID}]
	if !ok || entry.Identity != identity {
		return models.PresenceNotChecked
	}

	return models.PresenceFromBool(entry.Engaged)
}

// NeedsRefresh reports whether the sweep should query the resolver.
func (p *PresenceCache) NeedsRefresh(deviceID, instanceID, identity string, now time.Time) bool {
	entry, age, ok := p.Get(deviceID, instanceID, now)

	return !ok || entry.Identity != identity || age > p.ttl
}

func (p *PresenceCache) Put(deviceID, instanceID, identity string, engaged bool, now time.Time) {
	p.mu.Lock()
	p.entries[instanceKey{deviceID, instanceID}] = PresenceCacheEntry{
		Identity:  identity,
		Engaged:   engaged,
		CheckedAt: now,
	}
	p.mu.Unlock()
}

// Reset forgets the instance so the next sweep re-checks it.
func (p *PresenceCache) Reset(deviceID, instanceID string) {
	p.mu.Lock()
	delete(p.entries, instanceKey{deviceID, instanceID})
	p.mu.Unlock()
}
