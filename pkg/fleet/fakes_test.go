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
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

var (
	errFakeTimeout   = errors.New("command timed out")
	errFakeLaunch    = errors.New("launch failed")
	errFakeResolve   = errors.New("resolver exploded")
	errFakeListFails = errors.New("list failed")
)

// fakeClock advances by the requested duration whenever After is called so
// sleeps complete immediately.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now

	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeDevice struct {
	status     models.DeviceStatus
	responsive bool
	listErr    error
	running    map[string]bool
}

type launchCall struct {
	DeviceID   string
	InstanceID string
	Workload   models.WorkloadDescriptor
}

// fakeGateway simulates a small fleet of emulators. Launch starts the
// instance, and reboots stop every instance.
type fakeGateway struct {
	mu           sync.Mutex
	devices      map[string]*fakeDevice
	launches     []launchCall
	deviceReboot []string
	fleetReboots int
	shellCalls   map[string]int

	launchFn       func(deviceID, instanceID string) (bool, error)
	rebootDeviceFn func(d *fakeDevice) error

	// launchPending leaves accepted launches stopped, as a slow app start does.
	launchPending bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		devices:    make(map[string]*fakeDevice),
		shellCalls: make(map[string]int),
	}
}

func (g *fakeGateway) addDevice(id string, responsive bool, instances map[string]bool) *fakeDevice {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := &fakeDevice{status: models.DeviceStatusReady, responsive: responsive, running: instances}
	if d.running == nil {
		d.running = make(map[string]bool)
	}

	g.devices[id] = d

	return d
}

func (g *fakeGateway) ListDevices(_ context.Context) ([]models.DeviceListing, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.devices))
	for id := range g.devices {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	out := make([]models.DeviceListing, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.DeviceListing{ID: id, Status: g.devices[id].status, Model: "sdk_gphone"})
	}

	return out, nil
}

func (g *fakeGateway) RunShell(_ context.Context, deviceID, command string, _ time.Duration) (ShellResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.shellCalls[deviceID]++

	d, ok := g.devices[deviceID]
	if !ok || !d.responsive {
		return ShellResult{}, errFakeTimeout
	}

	switch {
	case command == probeCommand:
		return ShellResult{Stdout: "ok\n"}, nil
	case strings.HasPrefix(command, listInstancesCommand):
		if d.listErr != nil {
			return ShellResult{}, d.listErr
		}

		var b strings.Builder
		for id := range d.running {
			fmt.Fprintf(&b, "package:%s\n", id)
		}

		return ShellResult{Stdout: b.String()}, nil
	case strings.HasPrefix(command, "pidof "):
		id := strings.TrimSuffix(strings.TrimPrefix(command, "pidof "), " || true")
		if d.running[id] {
			return ShellResult{Stdout: "4242\n"}, nil
		}

		return ShellResult{}, nil
	}

	return ShellResult{}, fmt.Errorf("unexpected command %q", command)
}

func (g *fakeGateway) Launch(_ context.Context, deviceID, instanceID string, workload models.WorkloadDescriptor) (bool, error) {
	g.mu.Lock()
	g.launches = append(g.launches, launchCall{DeviceID: deviceID, InstanceID: instanceID, Workload: workload})
	fn := g.launchFn
	pending := g.launchPending
	g.mu.Unlock()

	ok, err := true, error(nil)
	if fn != nil {
		ok, err = fn(deviceID, instanceID)
	}

	if ok && err == nil && !pending {
		g.mu.Lock()
		g.devices[deviceID].running[instanceID] = true
		g.mu.Unlock()
	}

	return ok, err
}

func (g *fakeGateway) RebootDevice(_ context.Context, deviceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.deviceReboot = append(g.deviceReboot, deviceID)

	d := g.devices[deviceID]
	if g.rebootDeviceFn != nil {
		return g.rebootDeviceFn(d)
	}

	d.status = models.DeviceStatusReady
	d.responsive = true

	for id := range d.running {
		d.running[id] = false
	}

	return nil
}

func (g *fakeGateway) RebootFleet(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.fleetReboots++

	for _, d := range g.devices {
		for id := range d.running {
			d.running[id] = false
		}
	}

	return nil
}

func (g *fakeGateway) Launches() []launchCall {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]launchCall(nil), g.launches...)
}

// fakeResolver answers identity lookups from a table.
type fakeResolver struct {
	mu         sync.Mutex
	identities map[string]string
	errs       map[string]error
	calls      int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{identities: make(map[string]string), errs: make(map[string]error)}
}

func (r *fakeResolver) set(deviceID, instanceID, identity string) {
	r.mu.Lock()
	r.identities[deviceID+"/"+instanceID] = identity
	r.mu.Unlock()
}

func (r *fakeResolver) ResolveIdentity(_ context.Context, deviceID, instanceID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++

	key := deviceID + "/" + instanceID
	if err := r.errs[key]; err != nil {
		return "", err
	}

	return r.identities[key], nil
}

func (r *fakeResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls
}

// memRepo keeps the document in memory.
type memRepo struct {
	mu      sync.Mutex
	state   *models.FleetState
	saves   int
	loadErr error
}

func newMemRepo(state *models.FleetState) *memRepo {
	return &memRepo{state: state.Clone()}
}

func (r *memRepo) Load(_ context.Context) (*models.FleetState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loadErr != nil {
		return nil, r.loadErr
	}

	return r.state.Clone(), nil
}

func (r *memRepo) Save(_ context.Context, state *models.FleetState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saves++
	r.state = state.Clone()

	return nil
}

func (r *memRepo) Current() *models.FleetState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.Clone()
}

// eventRecorder collects published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []models.KeepAliveEventData
}

func (e *eventRecorder) PublishKeepAliveEvent(_ context.Context, data models.KeepAliveEventData) error {
	e.mu.Lock()
	e.events = append(e.events, data)
	e.mu.Unlock()

	return nil
}

func (e *eventRecorder) ByAction(action models.KeepAliveAction) []models.KeepAliveEventData {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []models.KeepAliveEventData

	for _, ev := range e.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}

	return out
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
