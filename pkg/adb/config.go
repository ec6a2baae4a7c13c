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

package adb

import (
	"github.com/carverauto/fleetkeeper/pkg/models"
)

const (
	defaultBinary       = "adb"
	defaultLaunchIntent = "android.intent.action.VIEW"
)

// Config configures the adb gateway.
type Config struct {
	// Binary is the adb executable; defaults to "adb" on PATH.
	Binary string `json:"binary,omitempty"`
	// ServerHost and ServerPort select a remote adb server (-H / -P).
	ServerHost string `json:"server_host,omitempty"`
	ServerPort int    `json:"server_port,omitempty"`
	// LaunchIntent is the intent action used to open a workload target.
	LaunchIntent string `json:"launch_intent,omitempty"`
	// FleetRebootCommand, when set, is run on the host instead of rebooting
	// every listed device, e.g. a script restarting all emulators.
	FleetRebootCommand []string `json:"fleet_reboot_command,omitempty"`
	// ListTimeout bounds `adb devices` when the caller sets no deadline.
	ListTimeout models.Duration `json:"list_timeout,omitempty"`
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if c.Binary == "" {
		c.Binary = defaultBinary
	}

	if c.LaunchIntent == "" {
		c.LaunchIntent = defaultLaunchIntent
	}

	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return errInvalidServerPort
	}

	return nil
}
