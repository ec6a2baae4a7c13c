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
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

const (
	probeCommand         = "echo ok"
	listInstancesCommand = "pm list packages"
	packageLinePrefix    = "package:"
)

var instanceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

// Aggregator builds per-device snapshots from live probes and the caches.
type Aggregator struct {
	gateway       Gateway
	identities    IdentityResolver
	repo          Repository
	identityCache *IdentityCache
	presenceCache *PresenceCache
	settings      Settings
	clock         Clock
	logger        logger.Logger

	// mu guards state and assignments, both replaced on every scan.
	mu          sync.Mutex
	state       *models.FleetState
	assignments *AssignmentResolver
}

// NewAggregator seeds the caches and assignment table from state.
func NewAggregator(deps Deps, state *models.FleetState, settings Settings) (*Aggregator, error) {
	if deps.Gateway == nil {
		return nil, ErrGatewayRequired
	}

	if deps.Identities == nil {
		return nil, ErrIdentityResolverRequired
	}

	if deps.Repository == nil {
		return nil, ErrRepositoryRequired
	}

	deps = deps.withDefaults()
	settings = settings.WithDefaults()
	state = state.Clone()

	return &Aggregator{
		gateway:       deps.Gateway,
		identities:    deps.Identities,
		repo:          deps.Repository,
		identityCache: NewIdentityCache(state.InstanceCache, settings.IdentityTTL, settings.FailureBackoff),
		presenceCache: NewPresenceCache(settings.PresenceTTL),
		assignments:   NewAssignmentResolver(state),
		settings:      settings,
		clock:         deps.Clock,
		logger:        deps.Logger,
		state:         state,
	}, nil
}

// IdentityCache exposes the identity cache for inspection.
func (a *Aggregator) IdentityCache() *IdentityCache {
	return a.identityCache
}

// PresenceCache exposes the presence cache the keep-alive sweep refreshes.
func (a *Aggregator) PresenceCache() *PresenceCache {
	return a.presenceCache
}

// Scan snapshots every listed device. Only a failing device list fails the
// scan; per-device problems degrade that device's snapshot.
func (a *Aggregator) Scan(ctx context.Context) ([]models.DeviceSnapshot, error) {
	start := a.clock.Now()

	a.reloadAssignments(ctx)

	listings, err := a.listDevices(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.DeviceSnapshot, len(listings))

	if a.settings.ScanConcurrency <= 1 || len(listings) <= 1 {
		for i, listing := range listings {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			snapshots[i] = a.ScanDevice(ctx, listing)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.settings.ScanConcurrency)

		for i, listing := range listings {
			g.Go(func() error {
				snapshots[i] = a.ScanDevice(gctx, listing)

				return nil
			})
		}

		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if err := a.Flush(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to persist identity cache")
	}

	elapsed := a.clock.Now().Sub(start)
	recordScan(ctx, elapsed, len(snapshots))

	a.logger.Debug().
		Int("devices", len(snapshots)).
		Dur("elapsed", elapsed).
		Msg("Fleet scan complete")

	return snapshots, nil
}

// ScanDevice snapshots a single device. Commands to the device are issued
// one at a time.
func (a *Aggregator) ScanDevice(ctx context.Context, listing models.DeviceListing) models.DeviceSnapshot {
	now := a.clock.Now()

	snap := models.DeviceSnapshot{
		Device: models.Device{
			ID:     listing.ID,
			Model:  listing.Model,
			Status: listing.Status,
		},
		ScannedAt: now,
	}

	if !listing.Status.Ready() {
		snap.Error = fmt.Sprintf("device status %s", listing.Status)
		snap.Instances = a.cachedInstances(listing.ID, now)

		return snap
	}

	if err := a.probe(ctx, listing.ID); err != nil {
		a.logger.Warn().
			Str("device_id", listing.ID).
			Err(err).
			Msg("Device unresponsive, using cached instances")

		snap.Error = err.Error()
		snap.Instances = a.cachedInstances(listing.ID, now)

		return snap
	}

	snap.Device.Responsive = true

	instanceIDs, err := a.listInstances(ctx, listing.ID)
	if err != nil {
		a.logger.Warn().
			Str("device_id", listing.ID).
			Err(err).
			Msg("Instance listing failed, using cached instances")

		snap.Error = err.Error()
		snap.Instances = a.cachedInstances(listing.ID, now)

		return snap
	}

	snap.Instances = make([]models.InstanceSnapshot, 0, len(instanceIDs))

	for _, instanceID := range instanceIDs {
		if ctx.Err() != nil {
			break
		}

		snap.Instances = append(snap.Instances, a.scanInstance(ctx, listing.ID, instanceID))
	}

	return snap
}

// Flush saves the identity cache if it changed. The latest persisted
// document is re-read so concurrent edits to other fields survive.
func (a *Aggregator) Flush(ctx context.Context) error {
	if !a.identityCache.Dirty() {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	base := a.state

	latest, err := a.repo.Load(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to reload fleet state before save, using in-memory copy")
	} else {
		base = latest
	}

	next := base.Clone()
	next.InstanceCache = a.identityCache.Records()

	if err := a.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save fleet state: %w", err)
	}

	a.identityCache.MarkClean()
	a.state = next
	a.assignments = NewAssignmentResolver(next)

	return nil
}

// reloadAssignments rebuilds the assignment table from the persisted
// document so edits saved while the loop runs apply to the next scan. A
// failed load keeps the previous table.
func (a *Aggregator) reloadAssignments(ctx context.Context) {
	latest, err := a.repo.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn().Err(err).Msg("Failed to reload fleet state, keeping previous assignments")
		}

		return
	}

	resolver := NewAssignmentResolver(latest)

	a.mu.Lock()
	a.state = latest
	a.assignments = resolver
	a.mu.Unlock()
}

func (a *Aggregator) assignmentFor(identity models.Identity) (models.WorkloadDescriptor, bool) {
	a.mu.Lock()
	resolver := a.assignments
	a.mu.Unlock()

	return resolver.Resolve(identity)
}

func (a *Aggregator) listDevices(ctx context.Context) ([]models.DeviceListing, error) {
	lctx, cancel := context.WithTimeout(ctx, a.settings.CommandTimeout)
	defer cancel()

	listings, err := a.gateway.ListDevices(lctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceList, err)
	}

	return listings, nil
}

func (a *Aggregator) probe(ctx context.Context, deviceID string) error {
	if _, err := a.gateway.RunShell(ctx, deviceID, probeCommand, a.settings.DeviceTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnresponsive, err)
	}

	return nil
}

func (a *Aggregator) listInstances(ctx context.Context, deviceID string) ([]string, error) {
	command := listInstancesCommand
	if a.settings.InstancePrefix != "" {
		command += " " + a.settings.InstancePrefix
	}

	res, err := a.gateway.RunShell(ctx, deviceID, command, a.settings.CommandTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInstanceList, err)
	}

	return parseInstanceList(res.Stdout, a.settings.InstancePrefix), nil
}

// parseInstanceList extracts package names from pm output, keeping only
// well-formed names under prefix.
func parseInstanceList(output, prefix string) []string {
	seen := make(map[string]struct{})

	var ids []string

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, packageLinePrefix) {
			continue
		}

		id := strings.TrimPrefix(line, packageLinePrefix)
		if !strings.HasPrefix(id, prefix) || !instanceIDPattern.MatchString(id) {
			continue
		}

		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

func (a *Aggregator) scanInstance(ctx context.Context, deviceID, instanceID string) models.InstanceSnapshot {
	running, err := a.isRunning(ctx, deviceID, instanceID)
	if err != nil {
		a.logger.Warn().
			Str("device_id", deviceID).
			Str("instance_id", instanceID).
			Err(err).
			Msg("Running-state probe failed, treating instance as stopped")
	}

	identity := a.resolveIdentity(ctx, deviceID, instanceID)

	return a.buildInstance(deviceID, instanceID, running, identity)
}

func (a *Aggregator) isRunning(ctx context.Context, deviceID, instanceID string) (bool, error) {
	res, err := a.gateway.RunShell(ctx, deviceID, "pidof "+instanceID+" || true", a.settings.CommandTimeout)
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(res.Stdout) != "", nil
}

func (a *Aggregator) resolveIdentity(ctx context.Context, deviceID, instanceID string) models.Identity {
	entry, status := a.identityCache.Lookup(deviceID, instanceID, a.clock.Now())

	switch status {
	case CacheFresh:
		return entry.Identity
	case CacheBackoff:
		return models.UnknownIdentity()
	case CacheMiss, CacheStale:
	}

	rctx, cancel := context.WithTimeout(ctx, a.settings.CommandTimeout)
	defer cancel()

	name, err := a.identities.ResolveIdentity(rctx, deviceID, instanceID)
	if err != nil {
		if ctx.Err() != nil {
			return models.UnknownIdentity()
		}

		a.logger.Warn().
			Str("device_id", deviceID).
			Str("instance_id", instanceID).
			Err(err).
			Msg("Identity resolution failed")

		a.identityCache.Put(deviceID, instanceID, models.UnknownIdentity(), models.CacheOutcomeError, a.clock.Now())
		recordIdentityResolution(ctx, models.CacheOutcomeError)

		return models.UnknownIdentity()
	}

	if name == "" {
		a.identityCache.Put(deviceID, instanceID, models.UnknownIdentity(), models.CacheOutcomeEmpty, a.clock.Now())
		recordIdentityResolution(ctx, models.CacheOutcomeEmpty)

		return models.UnknownIdentity()
	}

	identity := models.KnownIdentity(name)
	a.identityCache.Put(deviceID, instanceID, identity, models.CacheOutcomeFound, a.clock.Now())
	recordIdentityResolution(ctx, models.CacheOutcomeFound)

	return identity
}

// cachedInstances builds stopped snapshots from the identity cache without
// touching the device.
func (a *Aggregator) cachedInstances(deviceID string, now time.Time) []models.InstanceSnapshot {
	entries := a.identityCache.Instances(deviceID)
	out := make([]models.InstanceSnapshot, 0, len(entries))

	for _, entry := range entries {
		identity := a.identityCache.Usable(deviceID, entry.InstanceID, now)
		out = append(out, a.buildInstance(deviceID, entry.InstanceID, false, identity))
	}

	return out
}

func (a *Aggregator) buildInstance(deviceID, instanceID string, running bool, identity models.Identity) models.InstanceSnapshot {
	inst := models.InstanceSnapshot{
		InstanceID: instanceID,
		Running:    running,
		Identity:   identity,
		Presence:   models.PresenceNotChecked,
	}

	if workload, ok := a.assignmentFor(identity); ok {
		inst.Workload = &workload
	}

	if name, ok := identity.Value(); ok && a.settings.PresenceCheckEnabled {
		inst.Presence = a.presenceCache.Lookup(deviceID, instanceID, name)
	}

	return inst
}
