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

package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/carverauto/fleetkeeper/pkg/fleet"
	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

const instancePlaceholder = "{instance}"

// ShellIdentityConfig configures identity lookup through a device shell.
type ShellIdentityConfig struct {
	// Command runs on the device with {instance} replaced by the instance id,
	// e.g. "run-as {instance} cat shared_prefs/account.xml".
	Command string `json:"command"`
	// Pattern, when set, must have one capture group holding the identity.
	// Without it the first non-empty output line is the identity.
	Pattern string          `json:"pattern,omitempty"`
	Timeout models.Duration `json:"timeout,omitempty"`
}

// Validate checks the command template. Pattern errors surface from
// NewShellIdentityResolver.
func (c *ShellIdentityConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return errCommandRequired
	}

	if !strings.Contains(c.Command, instancePlaceholder) {
		return errInstancePattern
	}

	return nil
}

// ShellIdentityResolver reads the identity logged into an instance by
// running a command on its device.
type ShellIdentityResolver struct {
	gateway fleet.Gateway
	command string
	pattern *regexp.Regexp
	timeout time.Duration
	logger  logger.Logger
}

var _ fleet.IdentityResolver = (*ShellIdentityResolver)(nil)

func NewShellIdentityResolver(gateway fleet.Gateway, cfg *ShellIdentityConfig, log logger.Logger) (*ShellIdentityResolver, error) {
	if gateway == nil {
		return nil, errGatewayRequired
	}

	if cfg == nil {
		return nil, errCommandRequired
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &ShellIdentityResolver{
		gateway: gateway,
		command: cfg.Command,
		timeout: cfg.Timeout.Std(),
		logger:  log,
	}

	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidPattern, err)
		}

		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%w: no capture group", errInvalidPattern)
		}

		r.pattern = re
	}

	if r.logger == nil {
		r.logger = logger.NewTestLogger()
	}

	return r, nil
}

// ResolveIdentity returns "" with a nil error when the command ran but found
// no identity.
func (r *ShellIdentityResolver) ResolveIdentity(ctx context.Context, deviceID, instanceID string) (string, error) {
	command := strings.ReplaceAll(r.command, instancePlaceholder, instanceID)

	res, err := r.gateway.RunShell(ctx, deviceID, command, r.timeout)
	if err != nil {
		return "", err
	}

	name := r.extract(res.Stdout)

	r.logger.Debug().
		Str("device_id", deviceID).
		Str("instance_id", instanceID).
		Bool("found", name != "").
		Msg("Identity lookup complete")

	return name, nil
}

func (r *ShellIdentityResolver) extract(output string) string {
	if r.pattern != nil {
		m := r.pattern.FindStringSubmatch(output)
		if len(m) < 2 {
			return ""
		}

		return strings.TrimSpace(m[1])
	}

	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}

	return ""
}
