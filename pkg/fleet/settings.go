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
	"time"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

const (
	DefaultKeepAliveInterval     = 60 * time.Second
	MinKeepAliveInterval         = 10 * time.Second
	MaxKeepAliveInterval         = 300 * time.Second
	DefaultDeviceTimeout         = 15 * time.Second
	DefaultIdentityTTL           = 5 * time.Minute
	DefaultPresenceTTL           = 2 * time.Minute
	DefaultPresenceCheckInterval = 10 * time.Minute
	DefaultLaunchDelay           = 3 * time.Second
	DefaultLaunchTimeout         = 30 * time.Second
	DefaultCommandTimeout        = 30 * time.Second
	DefaultRecoveryAttempts      = 24
	DefaultRecoveryInterval      = 5 * time.Second
)

// Settings is the explicit configuration value handed to the aggregator and
// the keep-alive loop at construction time.
type Settings struct {
	KeepAliveInterval time.Duration
	// AutoRebootInterval of zero disables scheduled fleet reboots.
	AutoRebootInterval    time.Duration
	PresenceCheckEnabled  bool
	PresenceCheckInterval time.Duration
	DeviceTimeout         time.Duration
	IdentityTTL           time.Duration
	// FailureBackoff is how long a hard identity-resolution failure
	// suppresses re-resolution. Defaults to IdentityTTL.
	FailureBackoff   time.Duration
	PresenceTTL      time.Duration
	LaunchDelay      time.Duration
	LaunchTimeout    time.Duration
	CommandTimeout   time.Duration
	RecoveryAttempts int
	RecoveryInterval time.Duration
	// ScanConcurrency bounds how many devices are scanned at once.
	ScanConcurrency int
	// InstancePrefix filters the package list down to workload instances.
	InstancePrefix string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{}.WithDefaults()
}

// WithDefaults fills zero fields with their defaults and clamps the tick
// interval into [MinKeepAliveInterval, MaxKeepAliveInterval].
func (s Settings) WithDefaults() Settings {
	if s.KeepAliveInterval == 0 {
		s.KeepAliveInterval = DefaultKeepAliveInterval
	}

	s.KeepAliveInterval = min(max(s.KeepAliveInterval, MinKeepAliveInterval), MaxKeepAliveInterval)

	if s.AutoRebootInterval < 0 {
		s.AutoRebootInterval = 0
	}

	if s.PresenceCheckInterval <= 0 {
		s.PresenceCheckInterval = DefaultPresenceCheckInterval
	}

	if s.DeviceTimeout <= 0 {
		s.DeviceTimeout = DefaultDeviceTimeout
	}

	if s.IdentityTTL <= 0 {
		s.IdentityTTL = DefaultIdentityTTL
	}

	if s.FailureBackoff <= 0 {
		s.FailureBackoff = s.IdentityTTL
	}

	if s.PresenceTTL <= 0 {
		s.PresenceTTL = DefaultPresenceTTL
	}

	if s.LaunchDelay <= 0 {
		s.LaunchDelay = DefaultLaunchDelay
	}

	if s.LaunchTimeout <= 0 {
		s.LaunchTimeout = DefaultLaunchTimeout
	}

	if s.CommandTimeout <= 0 {
		s.CommandTimeout = DefaultCommandTimeout
	}

	if s.RecoveryAttempts <= 0 {
		s.RecoveryAttempts = DefaultRecoveryAttempts
	}

	if s.RecoveryInterval <= 0 {
		s.RecoveryInterval = DefaultRecoveryInterval
	}

	if s.ScanConcurrency <= 0 {
		s.ScanConcurrency = 1
	}

	return s
}

// ApplyState overlays the timing fields carried by the persisted document.
// The document is authoritative for the tick interval, the fleet reboot
// interval, presence checking and the device timeout.
func (s Settings) ApplyState(state *models.FleetState) Settings {
	if state == nil {
		return s.WithDefaults()
	}

	if state.KeepAliveInterval > 0 {
		s.KeepAliveInterval = time.Duration(state.KeepAliveInterval) * time.Second
	}

	s.AutoRebootInterval = time.Duration(state.AutoRebootInterval * float64(time.Hour))

	s.PresenceCheckEnabled = state.PresenceCheckInterval > 0
	if s.PresenceCheckEnabled {
		s.PresenceCheckInterval = time.Duration(state.PresenceCheckInterval) * time.Minute
	}

	if state.DeviceTimeoutSeconds > 0 {
		s.DeviceTimeout = time.Duration(state.DeviceTimeoutSeconds) * time.Second
	}

	return s.WithDefaults()
}
