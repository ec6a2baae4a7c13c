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
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

const tracerName = "github.com/carverauto/fleetkeeper/pkg/fleet"

// LoopState is the keep-alive loop's current phase.
type LoopState string

const (
	StateIdle              LoopState = "IDLE"
	StateFleetReboot       LoopState = "FLEET_REBOOT"
	StateScanning          LoopState = "SCANNING"
	StateRecoveringDevices LoopState = "RECOVERING_DEVICES"
	StatePresenceSweep     LoopState = "PRESENCE_SWEEP"
	StateEvaluating        LoopState = "EVALUATING"
	StateActing            LoopState = "ACTING"
	StateSleeping          LoopState = "SLEEPING"
)

const (
	ReasonNotRunning  = "not_running"
	ReasonNotEngaged  = "not_engaged"
	ReasonFleetReboot = "fleet_reboot"
)

// Deps are the collaborators of the aggregator and the keep-alive loop.
// Presence and Events are optional; Clock and Logger default to the wall
// clock and a no-op logger.
type Deps struct {
	Gateway    Gateway
	Identities IdentityResolver
	Presence   PresenceResolver
	Repository Repository
	Events     EventSink
	Clock      Clock
	Logger     logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = RealClock()
	}

	if d.Logger == nil {
		d.Logger = logger.Wrap(zerolog.Nop())
	}

	return d
}

// Session holds the live counters of one keep-alive run. It is never
// persisted.
type Session struct {
	StartedAt         time.Time
	LastFleetReboot   time.Time
	LastPresenceSweep time.Time
	Interval          time.Duration
	RebootInterval    time.Duration
	PresenceEnabled   bool
	Ticks             int
	Relaunches        int
	RelaunchFailures  int
	Recoveries        int
	RecoveryFailures  int
	FleetReboots      int
}

// Relaunch is one decided relaunch of an instance.
type Relaunch struct {
	DeviceID   string
	InstanceID string
	Identity   string
	Workload   models.WorkloadDescriptor
	Reason     string
}

// KeepAlive is the recovery control loop.
type KeepAlive struct {
	gateway    Gateway
	presence   PresenceResolver
	events     EventSink
	clock      Clock
	logger     logger.Logger
	aggregator *Aggregator
	recoverer  *DeviceRecoverer
	settings   Settings
	tracer     trace.Tracer

	mu      sync.Mutex
	state   LoopState
	session Session
}

// NewKeepAlive builds a loop over state with settings used as given.
func NewKeepAlive(deps Deps, state *models.FleetState, settings Settings) (*KeepAlive, error) {
	settings = settings.WithDefaults()

	if settings.PresenceCheckEnabled && deps.Presence == nil {
		return nil, ErrPresenceResolverRequired
	}

	aggregator, err := NewAggregator(deps, state, settings)
	if err != nil {
		return nil, err
	}

	deps = deps.withDefaults()
	now := deps.Clock.Now()

	return &KeepAlive{
		gateway:    deps.Gateway,
		presence:   deps.Presence,
		events:     deps.Events,
		clock:      deps.Clock,
		logger:     deps.Logger,
		aggregator: aggregator,
		recoverer:  NewDeviceRecoverer(deps.Gateway, deps.Clock, deps.Logger, settings),
		settings:   settings,
		tracer:     otel.Tracer(tracerName),
		state:      StateIdle,
		session: Session{
			StartedAt:       now,
			LastFleetReboot: now,
			Interval:        settings.KeepAliveInterval,
			RebootInterval:  settings.AutoRebootInterval,
			PresenceEnabled: settings.PresenceCheckEnabled,
		},
	}, nil
}

// RunKeepAlive loads the persisted state, overlays its timing fields on
// settings and runs the loop until ctx is cancelled.
func RunKeepAlive(ctx context.Context, deps Deps, settings Settings) error {
	if deps.Repository == nil {
		return ErrRepositoryRequired
	}

	state, err := deps.Repository.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadState, err)
	}

	k, err := NewKeepAlive(deps, state, settings.ApplyState(state))
	if err != nil {
		return err
	}

	return k.Run(ctx)
}

// Aggregator returns the aggregator the loop scans with.
func (k *KeepAlive) Aggregator() *Aggregator {
	return k.aggregator
}

// State returns the current loop phase.
func (k *KeepAlive) State() LoopState {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.state
}

// Session returns a copy of the live counters.
func (k *KeepAlive) Session() Session {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.session
}

func (k *KeepAlive) setState(state LoopState) {
	k.mu.Lock()
	prev := k.state
	k.state = state
	k.mu.Unlock()

	if prev != state {
		k.logger.Debug().Str("from", string(prev)).Str("to", string(state)).Msg("Keep-alive state transition")
	}
}

// Run ticks until ctx is cancelled, returning ctx.Err(). A panic inside a
// tick stops the loop with ErrUnexpected.
func (k *KeepAlive) Run(ctx context.Context) error {
	k.logger.Info().
		Dur("interval", k.settings.KeepAliveInterval).
		Dur("reboot_interval", k.settings.AutoRebootInterval).
		Bool("presence_enabled", k.settings.PresenceCheckEnabled).
		Msg("Starting keep-alive loop")

	defer k.setState(StateIdle)

	for {
		if err := k.guardedTick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}

		k.setState(StateSleeping)

		if !sleep(ctx, k.clock, k.settings.KeepAliveInterval) {
			k.logger.Info().Msg("Keep-alive loop cancelled")

			return ctx.Err()
		}
	}
}

func (k *KeepAlive) guardedTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error().Interface("panic", r).Msg("Keep-alive tick panicked")

			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
		}
	}()

	return k.Tick(ctx)
}

// Tick runs one pass of the loop. It returns an error only when ctx ends;
// every other failure is logged and retried next tick.
func (k *KeepAlive) Tick(ctx context.Context) error {
	ctx, span := k.tracer.Start(ctx, "keepalive.tick")
	defer span.End()

	k.mu.Lock()
	k.session.Ticks++
	tick := k.session.Ticks
	k.mu.Unlock()

	span.SetAttributes(attribute.Int("tick", tick))

	// A completed reboot already relaunched every target; the next tick
	// picks up anything that did not come back.
	if k.fleetRebootDue() && k.fleetReboot(ctx) {
		return ctx.Err()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	k.setState(StateScanning)

	snapshots, err := k.aggregator.Scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		span.RecordError(err)
		k.logger.Error().Int("tick", tick).Err(err).Msg("Fleet scan failed")

		return nil
	}

	k.setState(StateRecoveringDevices)
	snapshots = k.recoverDevices(ctx, snapshots)

	if err := ctx.Err(); err != nil {
		return err
	}

	if k.presenceSweepDue() {
		k.setState(StatePresenceSweep)
		k.presenceSweep(ctx, snapshots)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	issued := k.EvaluateAndAct(ctx, snapshots)

	span.SetAttributes(attribute.Int("devices", len(snapshots)), attribute.Int("relaunches", issued))

	return ctx.Err()
}

// EvaluateAndAct relaunches every instance that needs it and returns the
// number of launch commands issued.
func (k *KeepAlive) EvaluateAndAct(ctx context.Context, snapshots []models.DeviceSnapshot) int {
	k.setState(StateEvaluating)
	decisions := Evaluate(snapshots, k.settings.PresenceCheckEnabled)

	k.setState(StateActing)

	return k.act(ctx, decisions)
}

// Evaluate decides relaunches. Only assigned instances on responsive devices
// qualify; they relaunch when stopped or, with presence checks enabled, when
// their cached presence is not engaged.
func Evaluate(snapshots []models.DeviceSnapshot, presenceEnabled bool) []Relaunch {
	var out []Relaunch

	for _, snap := range snapshots {
		if !snap.Device.Responsive {
			continue
		}

		for _, inst := range snap.Instances {
			if !inst.Assigned() {
				continue
			}

			reason := ""

			switch {
			case !inst.Running:
				reason = ReasonNotRunning
			case presenceEnabled && inst.Presence == models.PresenceNotEngaged:
				reason = ReasonNotEngaged
			}

			if reason == "" {
				continue
			}

			name, _ := inst.Identity.Value()

			out = append(out, Relaunch{
				DeviceID:   snap.Device.ID,
				InstanceID: inst.InstanceID,
				Identity:   name,
				Workload:   *inst.Workload,
				Reason:     reason,
			})
		}
	}

	return out
}

func (k *KeepAlive) act(ctx context.Context, relaunches []Relaunch) int {
	issued := 0

	for i, r := range relaunches {
		if i > 0 && !sleep(ctx, k.clock, k.settings.LaunchDelay) {
			break
		}

		if ctx.Err() != nil {
			break
		}

		k.relaunch(ctx, r)
		issued++
	}

	return issued
}

func (k *KeepAlive) relaunch(ctx context.Context, r Relaunch) {
	lctx, cancel := context.WithTimeout(ctx, k.settings.LaunchTimeout)
	defer cancel()

	k.logger.Info().
		Str("device_id", r.DeviceID).
		Str("instance_id", r.InstanceID).
		Str("identity", r.Identity).
		Str("workload", r.Workload.Name).
		Str("reason", r.Reason).
		Msg("Relaunching instance")

	ok, err := k.gateway.Launch(lctx, r.DeviceID, r.InstanceID, r.Workload)
	success := err == nil && ok

	k.mu.Lock()
	if success {
		k.session.Relaunches++
	} else {
		k.session.RelaunchFailures++
	}
	k.mu.Unlock()

	event := models.KeepAliveEventData{
		Action:     models.ActionRelaunch,
		DeviceID:   r.DeviceID,
		InstanceID: r.InstanceID,
		Identity:   r.Identity,
		Workload:   &r.Workload,
		Reason:     r.Reason,
		Success:    success,
	}

	switch {
	case err != nil:
		event.Error = err.Error()
		k.logger.Warn().Str("device_id", r.DeviceID).Str("instance_id", r.InstanceID).Err(err).Msg("Relaunch failed")
	case !ok:
		event.Error = "launch reported failure"
		k.logger.Warn().Str("device_id", r.DeviceID).Str("instance_id", r.InstanceID).Msg("Relaunch reported failure")
	default:
		k.aggregator.PresenceCache().Reset(r.DeviceID, r.InstanceID)
	}

	recordRelaunch(ctx, r.Reason, success)
	k.publish(ctx, event)
}

func (k *KeepAlive) recoverDevices(ctx context.Context, snapshots []models.DeviceSnapshot) []models.DeviceSnapshot {
	recovered := 0

	for i := range snapshots {
		device := snapshots[i].Device
		if device.Responsive {
			continue
		}

		if ctx.Err() != nil {
			break
		}

		if device.Status == models.DeviceStatusUnauthorized {
			k.logger.Warn().Str("device_id", device.ID).Msg("Device unauthorized, skipping reboot")

			continue
		}

		ok := k.recoverer.Recover(ctx, device.ID)

		k.mu.Lock()
		if ok {
			k.session.Recoveries++
		} else {
			k.session.RecoveryFailures++
		}
		k.mu.Unlock()

		recordRecovery(ctx, ok)

		event := models.KeepAliveEventData{
			Action:   models.ActionDeviceRecovery,
			DeviceID: device.ID,
			Reason:   snapshots[i].Error,
			Success:  ok,
		}

		if !ok {
			event.Error = "device did not come back within the attempt ceiling"
			k.logger.Warn().Str("device_id", device.ID).Msg("Device recovery failed, retrying next tick")
			k.publish(ctx, event)

			continue
		}

		k.logger.Info().Str("device_id", device.ID).Msg("Device recovered")
		k.publish(ctx, event)

		snapshots[i] = k.aggregator.ScanDevice(ctx, models.DeviceListing{
			ID:     device.ID,
			Status: models.DeviceStatusReady,
			Model:  device.Model,
		})
		recovered++
	}

	if recovered > 0 {
		if err := k.aggregator.Flush(ctx); err != nil {
			k.logger.Warn().Err(err).Msg("Failed to persist identity cache after recovery")
		}
	}

	return snapshots
}

func (k *KeepAlive) fleetRebootDue() bool {
	if k.settings.AutoRebootInterval <= 0 {
		return false
	}

	k.mu.Lock()
	last := k.session.LastFleetReboot
	k.mu.Unlock()

	return k.clock.Now().Sub(last) >= k.settings.AutoRebootInterval
}

// fleetReboot reboots every device and relaunches every instance that was
// assigned beforehand, whatever its prior running state. The timer resets
// whether or not the relaunches succeed. It reports whether the relaunch
// pass ran.
func (k *KeepAlive) fleetReboot(ctx context.Context) bool {
	k.setState(StateFleetReboot)

	pre, err := k.aggregator.Scan(ctx)
	if err != nil {
		k.logger.Warn().Err(err).Msg("Pre-reboot scan failed, no relaunch targets collected")
	}

	targets := collectTargets(pre)

	k.mu.Lock()
	k.session.LastFleetReboot = k.clock.Now()
	k.session.FleetReboots++
	k.mu.Unlock()

	k.logger.Info().Int("devices", len(pre)).Int("targets", len(targets)).Msg("Starting scheduled fleet reboot")

	rctx, cancel := context.WithTimeout(ctx, k.settings.CommandTimeout)
	err = k.gateway.RebootFleet(rctx)

	cancel()

	if err != nil {
		k.logger.Error().Err(err).Msg("Fleet reboot command failed")
		recordFleetReboot(ctx, false)
		k.publish(ctx, models.KeepAliveEventData{
			Action: models.ActionFleetReboot,
			Error:  err.Error(),
		})

		return false
	}

	deviceIDs := make([]string, 0, len(pre))
	for _, snap := range pre {
		deviceIDs = append(deviceIDs, snap.Device.ID)
	}

	if missing := k.recoverer.WaitForDevices(ctx, deviceIDs); len(missing) > 0 {
		k.logger.Warn().Strs("devices", missing).Msg("Devices did not return after fleet reboot")
	}

	post, err := k.aggregator.Scan(ctx)
	if err != nil {
		k.logger.Error().Err(err).Msg("Post-reboot scan failed, skipping relaunch")
		recordFleetReboot(ctx, false)

		return false
	}

	responsive := make(map[string]bool, len(post))
	for _, snap := range post {
		responsive[snap.Device.ID] = snap.Device.Responsive
	}

	launchable := targets[:0]
	for _, t := range targets {
		if responsive[t.DeviceID] {
			launchable = append(launchable, t)
		} else {
			k.logger.Warn().Str("device_id", t.DeviceID).Str("instance_id", t.InstanceID).Msg("Device not responsive after fleet reboot, relaunch deferred")
		}
	}

	issued := k.act(ctx, launchable)

	recordFleetReboot(ctx, true)
	k.publish(ctx, models.KeepAliveEventData{
		Action:  models.ActionFleetReboot,
		Success: true,
		Reason:  fmt.Sprintf("relaunched %d of %d assigned instances", issued, len(targets)),
	})

	return true
}

func collectTargets(snapshots []models.DeviceSnapshot) []Relaunch {
	var out []Relaunch

	for _, snap := range snapshots {
		for _, inst := range snap.Instances {
			if !inst.Assigned() {
				continue
			}

			name, _ := inst.Identity.Value()

			out = append(out, Relaunch{
				DeviceID:   snap.Device.ID,
				InstanceID: inst.InstanceID,
				Identity:   name,
				Workload:   *inst.Workload,
				Reason:     ReasonFleetReboot,
			})
		}
	}

	return out
}

func (k *KeepAlive) presenceSweepDue() bool {
	if !k.settings.PresenceCheckEnabled {
		return false
	}

	k.mu.Lock()
	last := k.session.LastPresenceSweep
	k.mu.Unlock()

	return last.IsZero() || k.clock.Now().Sub(last) >= k.settings.PresenceCheckInterval
}

// presenceSweep refreshes stale presence entries for assigned instances and
// writes the results into snapshots. Each identity is queried at most once
// per sweep, whether or not the query succeeds.
func (k *KeepAlive) presenceSweep(ctx context.Context, snapshots []models.DeviceSnapshot) {
	now := k.clock.Now()
	cache := k.aggregator.PresenceCache()
	answered := make(map[string]bool)
	unanswered := make(map[string]bool)
	checked, failed := 0, 0

	for i := range snapshots {
		deviceID := snapshots[i].Device.ID

		for j := range snapshots[i].Instances {
			inst := &snapshots[i].Instances[j]
			if !inst.Assigned() {
				continue
			}

			if ctx.Err() != nil {
				return
			}

			name, _ := inst.Identity.Value()

			if !cache.NeedsRefresh(deviceID, inst.InstanceID, name, now) {
				inst.Presence = cache.Lookup(deviceID, inst.InstanceID, name)

				continue
			}

			if unanswered[name] {
				continue
			}

			engaged, seen := answered[name]
			if !seen {
				var err error

				engaged, err = k.checkPresence(ctx, name)
				if err != nil {
					failed++
					unanswered[name] = true

					k.logger.Warn().Str("identity", name).Err(err).Msg("Presence check failed")

					continue
				}

				answered[name] = engaged
				checked++
			}

			cache.Put(deviceID, inst.InstanceID, name, engaged, k.clock.Now())
			inst.Presence = models.PresenceFromBool(engaged)
		}
	}

	k.mu.Lock()
	k.session.LastPresenceSweep = now
	k.mu.Unlock()

	k.logger.Info().Int("checked", checked).Int("failed", failed).Msg("Presence sweep complete")
	k.publish(ctx, models.KeepAliveEventData{
		Action:  models.ActionPresenceSweep,
		Success: failed == 0,
		Reason:  fmt.Sprintf("checked %d identities, %d failed", checked, failed),
	})
}

func (k *KeepAlive) checkPresence(ctx context.Context, identity string) (bool, error) {
	pctx, cancel := context.WithTimeout(ctx, k.settings.CommandTimeout)
	defer cancel()

	return k.presence.CheckPresence(pctx, identity)
}

func (k *KeepAlive) publish(ctx context.Context, data models.KeepAliveEventData) {
	if k.events == nil {
		return
	}

	if data.Timestamp.IsZero() {
		data.Timestamp = k.clock.Now()
	}

	pctx, cancel := context.WithTimeout(ctx, k.settings.CommandTimeout)
	defer cancel()

	if err := k.events.PublishKeepAliveEvent(pctx, data); err != nil {
		k.logger.Debug().Str("action", string(data.Action)).Err(err).Msg("Failed to publish keep-alive event")
	}
}
