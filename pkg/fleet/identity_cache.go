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
	"sort"
	"sync"
	"time"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

// CacheStatus classifies an identity cache lookup.
type CacheStatus int

const (
	// CacheMiss means the instance was never checked.
	CacheMiss CacheStatus = iota
	// CacheFresh means a known identity was verified within the TTL.
	CacheFresh
	// CacheStale means the entry must be re-verified.
	CacheStale
	// CacheBackoff means the last check failed hard and the failure
	// backoff has not elapsed; the entry is unusable but not re-checked.
	CacheBackoff
)

func (s CacheStatus) String() string {
	switch s {
	case CacheMiss:
		return "miss"
	case CacheFresh:
		return "fresh"
	case CacheStale:
		return "stale"
	case CacheBackoff:
		return "backoff"
	default:
		return "invalid"
	}
}

type instanceKey struct {
	deviceID   string
	instanceID string
}

// IdentityCacheEntry is the last identity check for one instance. Identity
// survives failed checks for audit.
type IdentityCacheEntry struct {
	DeviceID   string
	InstanceID string
	Identity   models.Identity
	CheckedAt  time.Time
	Outcome    models.CacheOutcome
}

// IdentityCache holds per-instance identities. Entries are never removed.
type IdentityCache struct {
	mu             sync.Mutex
	entries        map[instanceKey]IdentityCacheEntry
	ttl            time.Duration
	failureBackoff time.Duration
	dirty          bool
}

// NewIdentityCache builds a cache seeded from persisted records.
func NewIdentityCache(records []models.InstanceCacheRecord, ttl, failureBackoff time.Duration) *IdentityCache {
	if failureBackoff <= 0 {
		failureBackoff = ttl
	}

	c := &IdentityCache{
		entries:        make(map[instanceKey]IdentityCacheEntry, len(records)),
		ttl:            ttl,
		failureBackoff: failureBackoff,
	}

	for _, rec := range records {
		entry := IdentityCacheEntry{
			DeviceID:   rec.DeviceID,
			InstanceID: rec.InstanceID,
			Outcome:    rec.LastOutcome,
		}

		if rec.Identity != nil {
			entry.Identity = models.KnownIdentity(*rec.Identity)
		}

		if rec.LastCookieCheck != nil {
			entry.CheckedAt = *rec.LastCookieCheck
		}

		c.entries[instanceKey{rec.DeviceID, rec.InstanceID}] = entry
	}

	return c
}

// Get returns the entry and its age at now.
func (c *IdentityCache) Get(deviceID, instanceID string, now time.Time) (IdentityCacheEntry, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[instanceKey{deviceID, instanceID}]
	if !ok {
		return IdentityCacheEntry{}, 0, false
	}

	return entry, now.Sub(entry.CheckedAt), true
}

// Lookup classifies the entry at now.
func (c *IdentityCache) Lookup(deviceID, instanceID string, now time.Time) (IdentityCacheEntry, CacheStatus) {
	entry, age, ok := c.Get(deviceID, instanceID, now)
	if !ok {
		return entry, CacheMiss
	}

	if entry.Outcome == models.CacheOutcomeError {
		if age <= c.failureBackoff {
			return entry, CacheBackoff
		}

		return entry, CacheStale
	}

	if entry.Outcome == models.CacheOutcomeEmpty || !entry.Identity.IsKnown() {
		return entry, CacheStale
	}

	if age > c.ttl {
		return entry, CacheStale
	}

	return entry, CacheFresh
}

// Usable returns the identity downstream code may act on: the cached one
// when fresh, unknown otherwise.
func (c *IdentityCache) Usable(deviceID, instanceID string, now time.Time) models.Identity {
	entry, status := c.Lookup(deviceID, instanceID, now)
	if status != CacheFresh {
		return models.UnknownIdentity()
	}

	return entry.Identity
}

// Put records a check. A found outcome overwrites the identity, an empty
// outcome clears it, and an error outcome keeps the previous identity.
func (c *IdentityCache) Put(deviceID, instanceID string, identity models.Identity, outcome models.CacheOutcome, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := instanceKey{deviceID, instanceID}
	entry := c.entries[key]
	entry.DeviceID = deviceID
	entry.InstanceID = instanceID
	entry.CheckedAt = now
	entry.Outcome = outcome

	switch outcome {
	case models.CacheOutcomeFound:
		entry.Identity = identity
	case models.CacheOutcomeEmpty:
		entry.Identity = models.UnknownIdentity()
	case models.CacheOutcomeError:
		// last known identity stays for audit
	}

	c.entries[key] = entry
	c.dirty = true
}

// Instances returns the cached entries for one device sorted by instance.
func (c *IdentityCache) Instances(deviceID string) []IdentityCacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []IdentityCacheEntry

	for key, entry := range c.entries {
		if key.deviceID == deviceID {
			out = append(out, entry)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })

	return out
}

// Dirty reports whether the cache changed since the last MarkClean.
func (c *IdentityCache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dirty
}

// MarkClean clears the dirty flag after a successful save.
func (c *IdentityCache) MarkClean() {
	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
}

// Records exports the cache in persisted form, ordered by device then
// instance.
func (c *IdentityCache) Records() []models.InstanceCacheRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.InstanceCacheRecord, 0, len(c.entries))

	for _, entry := range c.entries {
		rec := models.InstanceCacheRecord{
			DeviceID:    entry.DeviceID,
			InstanceID:  entry.InstanceID,
			LastOutcome: entry.Outcome,
		}

		if name, ok := entry.Identity.Value(); ok {
			rec.Identity = &name
		}

		if !entry.CheckedAt.IsZero() {
			checked := entry.CheckedAt
			rec.LastCookieCheck = &checked
		}

		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceID != out[j].DeviceID {
			return out[i].DeviceID < out[j].DeviceID
		}

		return out[i].InstanceID < out[j].InstanceID
	})

	return out
}
