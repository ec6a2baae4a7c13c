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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

// The edit functions below never mutate their input; each returns a new
// state value for the caller to save.

// SetAssignment maps identity to workload, replacing any existing mapping.
func SetAssignment(state *models.FleetState, identity string, workload models.WorkloadDescriptor) (*models.FleetState, error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}

	if workload.Target == "" {
		return nil, ErrEmptyTarget
	}

	next := state.Clone()

	for i := range next.UsernameAssignments {
		if next.UsernameAssignments[i].Identity == identity {
			next.UsernameAssignments[i].Workload = workload

			return next, nil
		}
	}

	next.UsernameAssignments = append(next.UsernameAssignments, models.UsernameAssignment{
		Identity: identity,
		Workload: workload,
	})

	return next, nil
}

// RemoveAssignment drops the mapping for identity.
func RemoveAssignment(state *models.FleetState, identity string) (*models.FleetState, error) {
	next := state.Clone()

	kept := next.UsernameAssignments[:0]
	for _, a := range next.UsernameAssignments {
		if a.Identity != identity {
			kept = append(kept, a)
		}
	}

	if len(kept) == len(next.UsernameAssignments) {
		return nil, fmt.Errorf("%w: %s", ErrAssignmentNotFound, identity)
	}

	next.UsernameAssignments = kept

	return next, nil
}

// SetDefaultWorkload sets the fleet-wide fallback workload.
func SetDefaultWorkload(state *models.FleetState, workload models.WorkloadDescriptor) (*models.FleetState, error) {
	if workload.Target == "" {
		return nil, ErrEmptyTarget
	}

	next := state.Clone()
	next.DefaultWorkload = &workload

	return next, nil
}

// ClearDefaultWorkload removes the fleet-wide fallback workload.
func ClearDefaultWorkload(state *models.FleetState) *models.FleetState {
	next := state.Clone()
	next.DefaultWorkload = nil

	return next
}

// SaveTemplate stores workload under name with a fresh id.
func SaveTemplate(state *models.FleetState, name string, workload models.WorkloadDescriptor, now time.Time) (*models.FleetState, models.WorkloadTemplate, error) {
	if workload.Target == "" {
		return nil, models.WorkloadTemplate{}, ErrEmptyTarget
	}

	if name == "" {
		name = workload.Name
	}

	tmpl := models.WorkloadTemplate{
		ID:        uuid.New().String(),
		Name:      name,
		Workload:  workload,
		CreatedAt: now.UTC(),
	}

	next := state.Clone()
	next.WorkloadTemplates = append(next.WorkloadTemplates, tmpl)

	return next, tmpl, nil
}

// DeleteTemplate removes the template with id.
func DeleteTemplate(state *models.FleetState, id string) (*models.FleetState, error) {
	next := state.Clone()

	kept := next.WorkloadTemplates[:0]
	for _, t := range next.WorkloadTemplates {
		if t.ID != id {
			kept = append(kept, t)
		}
	}

	if len(kept) == len(next.WorkloadTemplates) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	next.WorkloadTemplates = kept

	return next, nil
}

// ApplyTemplate assigns the template's workload to every identity given.
func ApplyTemplate(state *models.FleetState, id string, identities ...string) (*models.FleetState, error) {
	if state == nil {
		state = &models.FleetState{}
	}

	var tmpl *models.WorkloadTemplate

	for i := range state.WorkloadTemplates {
		if state.WorkloadTemplates[i].ID == id {
			tmpl = &state.WorkloadTemplates[i]

			break
		}
	}

	if tmpl == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	next := state
	for _, identity := range identities {
		var err error

		next, err = SetAssignment(next, identity, tmpl.Workload)
		if err != nil {
			return nil, err
		}
	}

	if next == state {
		next = state.Clone()
	}

	return next, nil
}
