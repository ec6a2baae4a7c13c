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

//go:generate mockgen -destination=mock_fleet.go -package=fleet github.com/carverauto/fleetkeeper/pkg/fleet Gateway,IdentityResolver,PresenceResolver,Repository,EventSink

// Package fleet implements fleet status aggregation, identity caching and
// the keep-alive recovery loop.
package fleet

import (
	"context"
	"time"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

// ShellResult is the captured output of a remote shell command.
type ShellResult struct {
	Stdout string
	Stderr string
}

// Gateway runs commands against devices. Implementations may serialize
// commands per device; callers never interleave commands to one device.
type Gateway interface {
	ListDevices(ctx context.Context) ([]models.DeviceListing, error)
	// RunShell fails on timeout or transport error. A zero timeout means no
	// bound beyond ctx.
	RunShell(ctx context.Context, deviceID, command string, timeout time.Duration) (ShellResult, error)
	Launch(ctx context.Context, deviceID, instanceID string, workload models.WorkloadDescriptor) (bool, error)
	RebootDevice(ctx context.Context, deviceID string) error
	RebootFleet(ctx context.Context) error
}

// IdentityResolver recovers the identity logged into an instance. An empty
// name with a nil error means no identity was found.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, deviceID, instanceID string) (string, error)
}

// PresenceResolver reports whether an identity is engaged in its workload.
type PresenceResolver interface {
	CheckPresence(ctx context.Context, identity string) (bool, error)
}

// Repository loads and saves the persisted keep-alive document.
type Repository interface {
	Load(ctx context.Context) (*models.FleetState, error)
	Save(ctx context.Context, state *models.FleetState) error
}

// EventSink receives a record of every recovery and relaunch attempt.
type EventSink interface {
	PublishKeepAliveEvent(ctx context.Context, data models.KeepAliveEventData) error
}

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}

// sleep waits d on clock and reports false if ctx ended first.
func sleep(ctx context.Context, clock Clock, d time.Duration) bool {
	if ctx.Err() != nil || d <= 0 {
		return ctx.Err() == nil
	}

	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
