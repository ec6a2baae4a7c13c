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
	"sort"
	"time"

	"github.com/carverauto/fleetkeeper/pkg/logger"
)

// DeviceRecoverer reboots devices and waits for them to come back. Polling
// runs at a fixed interval since boot time is roughly constant.
type DeviceRecoverer struct {
	gateway        Gateway
	clock          Clock
	logger         logger.Logger
	attempts       int
	interval       time.Duration
	commandTimeout time.Duration
}

func NewDeviceRecoverer(gateway Gateway, clock Clock, log logger.Logger, settings Settings) *DeviceRecoverer {
	settings = settings.WithDefaults()

	return &DeviceRecoverer{
		gateway:        gateway,
		clock:          clock,
		logger:         log,
		attempts:       settings.RecoveryAttempts,
		interval:       settings.RecoveryInterval,
		commandTimeout: settings.CommandTimeout,
	}
}

// Recover reboots deviceID and reports whether it reappeared ready within
// the attempt ceiling.
func (r *DeviceRecoverer) Recover(ctx context.Context, deviceID string) bool {
	r.logger.Info().
		Str("device_id", deviceID).
		Int("max_attempts", r.attempts).
		Dur("interval", r.interval).
		Msg("Rebooting unresponsive device")

	rctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	err := r.gateway.RebootDevice(rctx, deviceID)

	cancel()

	if err != nil {
		r.logger.Warn().Str("device_id", deviceID).Err(err).Msg("Device reboot command failed")

		return false
	}

	missing := r.WaitForDevices(ctx, []string{deviceID})

	return len(missing) == 0
}

// WaitForDevices polls the device list until every id is listed ready or
// the attempt ceiling is exhausted, returning the ids still missing.
func (r *DeviceRecoverer) WaitForDevices(ctx context.Context, deviceIDs []string) []string {
	pending := make(map[string]struct{}, len(deviceIDs))
	for _, id := range deviceIDs {
		pending[id] = struct{}{}
	}

	for attempt := 1; attempt <= r.attempts && len(pending) > 0; attempt++ {
		if !sleep(ctx, r.clock, r.interval) {
			break
		}

		lctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
		listings, err := r.gateway.ListDevices(lctx)

		cancel()

		if err != nil {
			r.logger.Debug().Int("attempt", attempt).Err(err).Msg("Device list failed while waiting for reboot")

			continue
		}

		for _, listing := range listings {
			if listing.Status.Ready() {
				delete(pending, listing.ID)
			}
		}

		r.logger.Debug().
			Int("attempt", attempt).
			Int("pending", len(pending)).
			Msg("Waiting for devices to come back")
	}

	missing := make([]string, 0, len(pending))
	for id := range pending {
		missing = append(missing, id)
	}

	sort.Strings(missing)

	return missing
}
