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

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Duration
		wantErr  bool
	}{
		{name: "string duration", input: `"5s"`, expected: Duration(5 * time.Second)},
		{name: "numeric nanoseconds", input: `5000000000`, expected: Duration(5 * time.Second)},
		{name: "compound string", input: `"1h30m"`, expected: Duration(90 * time.Minute)},
		{name: "invalid string", input: `"soon"`, wantErr: true},
		{name: "invalid type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(data))
}

func TestIdentityJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Identity `json:"a"`
		B Identity `json:"b"`
	}{A: KnownIdentity("alice"), B: UnknownIdentity()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"alice","b":null}`, string(data))

	var decoded struct {
		A Identity `json:"a"`
		B Identity `json:"b"`
	}

	require.NoError(t, json.Unmarshal(data, &decoded))

	name, ok := decoded.A.Value()
	assert.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.False(t, decoded.B.IsKnown())
}

func TestKnownIdentityEmptyNameIsUnknown(t *testing.T) {
	assert.False(t, KnownIdentity("").IsKnown())
	assert.Equal(t, UnknownIdentity(), KnownIdentity(""))
}

func TestPresenceFromBool(t *testing.T) {
	assert.Equal(t, PresenceEngaged, PresenceFromBool(true))
	assert.Equal(t, PresenceNotEngaged, PresenceFromBool(false))
	assert.Equal(t, "not_checked", PresenceNotChecked.String())
}

func TestFleetStateCloneDoesNotAlias(t *testing.T) {
	name := "alice"
	now := time.Now()

	state := &FleetState{
		UsernameAssignments: []UsernameAssignment{{Identity: "alice", Workload: WorkloadDescriptor{Target: "1", Name: "one"}}},
		InstanceCache: []InstanceCacheRecord{{
			DeviceID: "emu-1", InstanceID: "pkg.a", Identity: &name, LastCookieCheck: &now,
		}},
		DefaultWorkload: &WorkloadDescriptor{Target: "2", Name: "two"},
	}

	clone := state.Clone()
	clone.UsernameAssignments[0].Identity = "bob"
	*clone.InstanceCache[0].Identity = "bob"
	clone.DefaultWorkload.Name = "changed"

	assert.Equal(t, "alice", state.UsernameAssignments[0].Identity)
	assert.Equal(t, "alice", *state.InstanceCache[0].Identity)
	assert.Equal(t, "two", state.DefaultWorkload.Name)
}

func TestFleetStateJSONLayout(t *testing.T) {
	state := FleetState{
		KeepAliveInterval:     60,
		AutoRebootInterval:    6,
		PresenceCheckInterval: 10,
		DeviceTimeoutSeconds:  15,
	}

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{
		"usernameAssignments", "instanceCache", "keepAliveInterval", "autoRebootInterval",
		"presenceCheckInterval", "deviceTimeoutSeconds", "workloadTemplates",
	} {
		assert.Contains(t, raw, key)
	}

	assert.NotContains(t, raw, "defaultWorkload")
}
