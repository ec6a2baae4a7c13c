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

// Package cli implements the fleetctl operator commands.
package cli

import (
	"context"

	"github.com/charmbracelet/lipgloss"

	"github.com/carverauto/fleetkeeper/pkg/fleet"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

// CmdConfig holds parsed command-line arguments.
type CmdConfig struct {
	SubCmd       string
	Action       string
	ConfigFile   string
	Identity     string
	Target       string
	Name         string
	WorkloadName string
	TemplateID   string
	Identities   []string
	Clear        bool
	JSON         bool
	Help         bool
	Args         []string
	Settings     SettingsUpdate
}

// SettingsUpdate carries the interval flags given to the settings
// subcommand. Nil fields are left unchanged.
type SettingsUpdate struct {
	KeepAliveSeconds     *int
	AutoRebootHours      *float64
	PresenceCheckMinutes *int
	DeviceTimeoutSeconds *int
}

// Empty reports whether no setting was given.
func (u *SettingsUpdate) Empty() bool {
	return u.KeepAliveSeconds == nil &&
		u.AutoRebootHours == nil &&
		u.PresenceCheckMinutes == nil &&
		u.DeviceTimeoutSeconds == nil
}

// Backend is what the commands need from a configured keeper.
type Backend interface {
	Repository() fleet.Repository
	Scan(ctx context.Context) ([]models.DeviceSnapshot, error)
}

// logStyles defines styles for logging messages
type logStyles struct {
	info, success, warning, error lipgloss.Style
}
