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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

func TestAssignmentResolverPrecedence(t *testing.T) {
	exact := models.WorkloadDescriptor{Target: "https://example.com/a", Name: "a"}
	duplicate := models.WorkloadDescriptor{Target: "https://example.com/dup", Name: "dup"}
	fallback := models.WorkloadDescriptor{Target: "https://example.com/default", Name: "default"}

	state := &models.FleetState{
		UsernameAssignments: []models.UsernameAssignment{
			{Identity: "alice", Workload: exact},
			{Identity: "alice", Workload: duplicate},
		},
		DefaultWorkload: &fallback,
	}

	tests := []struct {
		name     string
		state    *models.FleetState
		identity models.Identity
		want     models.WorkloadDescriptor
		ok       bool
	}{
		{name: "exact match wins", state: state, identity: models.KnownIdentity("alice"), want: exact, ok: true},
		{name: "default for others", state: state, identity: models.KnownIdentity("bob"), want: fallback, ok: true},
		{name: "unknown identity", state: state, identity: models.UnknownIdentity()},
		{name: "no default", state: &models.FleetState{}, identity: models.KnownIdentity("bob")},
		{name: "nil state", identity: models.KnownIdentity("bob")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewAssignmentResolver(tt.state).Resolve(tt.identity)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssignmentEdits(t *testing.T) {
	w := models.WorkloadDescriptor{Target: "https://example.com/a", Name: "a"}
	w2 := models.WorkloadDescriptor{Target: "https://example.com/b", Name: "b"}
	original := &models.FleetState{KeepAliveInterval: 45}

	t.Run("set and replace", func(t *testing.T) {
		next, err := SetAssignment(original, "alice", w)
		require.NoError(t, err)
		assert.Empty(t, original.UsernameAssignments, "input must not be mutated")

		next, err = SetAssignment(next, "alice", w2)
		require.NoError(t, err)
		require.Len(t, next.UsernameAssignments, 1)
		assert.Equal(t, w2, next.UsernameAssignments[0].Workload)
		assert.Equal(t, 45, next.KeepAliveInterval)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := SetAssignment(original, "", w)
		require.ErrorIs(t, err, ErrEmptyIdentity)

		_, err = SetAssignment(original, "alice", models.WorkloadDescriptor{})
		require.ErrorIs(t, err, ErrEmptyTarget)

		_, err = SetDefaultWorkload(original, models.WorkloadDescriptor{Name: "x"})
		require.ErrorIs(t, err, ErrEmptyTarget)
	})

	t.Run("remove", func(t *testing.T) {
		next, err := SetAssignment(original, "alice", w)
		require.NoError(t, err)

		next, err = RemoveAssignment(next, "alice")
		require.NoError(t, err)
		assert.Empty(t, next.UsernameAssignments)

		_, err = RemoveAssignment(next, "alice")
		require.ErrorIs(t, err, ErrAssignmentNotFound)
	})

	t.Run("default workload", func(t *testing.T) {
		next, err := SetDefaultWorkload(original, w)
		require.NoError(t, err)
		require.NotNil(t, next.DefaultWorkload)
		assert.Nil(t, original.DefaultWorkload)

		assert.Nil(t, ClearDefaultWorkload(next).DefaultWorkload)
	})

	t.Run("templates", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		next, tmpl, err := SaveTemplate(original, "", w, now)
		require.NoError(t, err)
		assert.NotEmpty(t, tmpl.ID)
		assert.Equal(t, "a", tmpl.Name, "name defaults to the workload name")
		require.Len(t, next.WorkloadTemplates, 1)

		applied, err := ApplyTemplate(next, tmpl.ID, "alice", "bob")
		require.NoError(t, err)
		require.Len(t, applied.UsernameAssignments, 2)
		assert.Equal(t, w, applied.UsernameAssignments[1].Workload)
		assert.Empty(t, next.UsernameAssignments)

		_, err = ApplyTemplate(next, "missing", "alice")
		require.ErrorIs(t, err, ErrTemplateNotFound)

		removed, err := DeleteTemplate(next, tmpl.ID)
		require.NoError(t, err)
		assert.Empty(t, removed.WorkloadTemplates)

		_, err = DeleteTemplate(removed, tmpl.ID)
		require.ErrorIs(t, err, ErrTemplateNotFound)
	})
}
