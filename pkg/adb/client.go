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
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/fleetkeeper/pkg/fleet"
	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

var (
	ErrCommandTimeout    = errors.New("adb command timed out")
	ErrCommandFailed     = errors.New("adb command failed")
	errEmptyTarget       = errors.New("workload target is empty")
	errInvalidServerPort = errors.New("server_port must be between 0 and 65535")
)

const (
	devicesHeader      = "List of devices attached"
	modelFieldPrefix   = "model:"
	defaultListTimeout = 10 * time.Second
)

// Client is a fleet.Gateway over the adb binary. Commands to one device are
// serialized; different devices run in parallel.
type Client struct {
	runner Runner
	cfg    Config
	logger logger.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var _ fleet.Gateway = (*Client)(nil)

func NewClient(cfg *Config, runner Runner, log logger.Logger) (*Client, error) {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	if runner == nil {
		runner = ExecRunner{}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Client{
		runner: runner,
		cfg:    c,
		logger: log,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (c *Client) deviceLock(deviceID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	mu, ok := c.locks[deviceID]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[deviceID] = mu
	}

	return mu
}

func (c *Client) args(args ...string) []string {
	out := make([]string, 0, len(args)+4)

	if c.cfg.ServerHost != "" {
		out = append(out, "-H", c.cfg.ServerHost)
	}

	if c.cfg.ServerPort > 0 {
		out = append(out, "-P", strconv.Itoa(c.cfg.ServerPort))
	}

	return append(out, args...)
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	stdout, stderr, err := c.runner.Run(ctx, c.cfg.Binary, c.args(args...)...)
	if err == nil {
		return stdout, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrCommandTimeout, strings.Join(args, " "))
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		msg = strings.TrimSpace(string(stdout))
	}

	return nil, fmt.Errorf("%w: %s: %s: %w", ErrCommandFailed, strings.Join(args, " "), msg, err)
}

// ListDevices runs `adb devices -l`.
func (c *Client) ListDevices(ctx context.Context) ([]models.DeviceListing, error) {
	if _, ok := ctx.Deadline(); !ok {
		timeout := c.cfg.ListTimeout.Std()
		if timeout <= 0 {
			timeout = defaultListTimeout
		}

		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := c.run(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}

	return parseDevices(string(out)), nil
}

// parseDevices reads `adb devices -l` output, sorted by serial.
func parseDevices(output string) []models.DeviceListing {
	var devices []models.DeviceListing

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, devicesHeader) || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		listing := models.DeviceListing{
			ID:     fields[0],
			Status: parseStatus(fields[1]),
		}

		for _, f := range fields[2:] {
			if strings.HasPrefix(f, modelFieldPrefix) {
				listing.Model = strings.TrimPrefix(f, modelFieldPrefix)
			}
		}

		devices = append(devices, listing)
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	return devices
}

func parseStatus(state string) models.DeviceStatus {
	switch models.DeviceStatus(state) {
	case models.DeviceStatusReady, models.DeviceStatusOffline, models.DeviceStatusUnauthorized, models.DeviceStatusBooting:
		return models.DeviceStatus(state)
	case models.DeviceStatusUnknown:
	}

	return models.DeviceStatusUnknown
}

// RunShell runs command through `adb -s <id> shell`.
func (c *Client) RunShell(ctx context.Context, deviceID, command string, timeout time.Duration) (fleet.ShellResult, error) {
	mu := c.deviceLock(deviceID)
	mu.Lock()
	defer mu.Unlock()

	return c.shell(ctx, deviceID, command, timeout)
}

func (c *Client) shell(ctx context.Context, deviceID, command string, timeout time.Duration) (fleet.ShellResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout, stderr, err := c.runner.Run(ctx, c.cfg.Binary, c.args("-s", deviceID, "shell", command)...)
	res := fleet.ShellResult{Stdout: string(stdout), Stderr: string(stderr)}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%w: %s on %s", ErrCommandTimeout, command, deviceID)
		}

		return res, fmt.Errorf("%w: %s on %s: %w", ErrCommandFailed, command, deviceID, err)
	}

	return res, nil
}

// Launch opens the workload target inside the instance with an activity
// manager intent. A launch the activity manager rejects reports false.
func (c *Client) Launch(ctx context.Context, deviceID, instanceID string, workload models.WorkloadDescriptor) (bool, error) {
	if workload.Target == "" {
		return false, errEmptyTarget
	}

	command := fmt.Sprintf("am start -a %s -d %s -p %s",
		c.cfg.LaunchIntent, shellQuote(workload.Target), shellQuote(instanceID))

	mu := c.deviceLock(deviceID)
	mu.Lock()
	defer mu.Unlock()

	res, err := c.shell(ctx, deviceID, command, 0)
	if err != nil {
		return false, err
	}

	if launchRejected(res.Stdout) || launchRejected(res.Stderr) {
		c.logger.Warn().
			Str("device_id", deviceID).
			Str("instance_id", instanceID).
			Str("output", strings.TrimSpace(res.Stdout+res.Stderr)).
			Msg("Activity manager rejected launch")

		return false, nil
	}

	return true, nil
}

func launchRejected(output string) bool {
	return strings.Contains(output, "Error:") || strings.Contains(output, "Exception")
}

// RebootDevice issues `adb -s <id> reboot` and returns once the command is
// accepted; it does not wait for boot.
func (c *Client) RebootDevice(ctx context.Context, deviceID string) error {
	mu := c.deviceLock(deviceID)
	mu.Lock()
	defer mu.Unlock()

	_, err := c.run(ctx, "-s", deviceID, "reboot")

	return err
}

// RebootFleet runs the configured host command, or reboots every listed
// device when none is configured.
func (c *Client) RebootFleet(ctx context.Context) error {
	if cmd := c.cfg.FleetRebootCommand; len(cmd) > 0 {
		c.logger.Info().Strs("command", cmd).Msg("Running fleet reboot command")

		_, stderr, err := c.runner.Run(ctx, cmd[0], cmd[1:]...)
		if err != nil {
			return fmt.Errorf("%w: %s: %s: %w", ErrCommandFailed, strings.Join(cmd, " "), strings.TrimSpace(string(stderr)), err)
		}

		return nil
	}

	devices, err := c.ListDevices(ctx)
	if err != nil {
		return err
	}

	var errs []error

	for _, d := range devices {
		if d.Status == models.DeviceStatusUnauthorized {
			continue
		}

		if err := c.RebootDevice(ctx, d.ID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
