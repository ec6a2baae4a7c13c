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

import "github.com/carverauto/fleetkeeper/pkg/models"

// AssignmentResolver maps identities to workloads. It is immutable after
// construction.
type AssignmentResolver struct {
	byIdentity      map[string]models.WorkloadDescriptor
	defaultWorkload *models.WorkloadDescriptor
}

func NewAssignmentResolver(state *models.FleetState) *AssignmentResolver {
	a := &AssignmentResolver{byIdentity: make(map[string]models.WorkloadDescriptor)}
	if state == nil {
		return a
	}

	for _, assignment := range state.UsernameAssignments {
		if _, exists := a.byIdentity[assignment.Identity]; !exists {
			a.byIdentity[assignment.Identity] = assignment.Workload
		}
	}

	if state.DefaultWorkload != nil {
		w := *state.DefaultWorkload
		a.defaultWorkload = &w
	}

	return a
}

// Resolve returns the exact per-identity mapping, else the default, else
// nothing. Unknown identities never resolve.
func (a *AssignmentResolver) Resolve(identity models.Identity) (models.WorkloadDescriptor, bool) {
	name, ok := identity.Value()
	if !ok {
		return models.WorkloadDescriptor{}, false
	}

	if w, found := a.byIdentity[name]; found {
		return w, true
	}

	if a.defaultWorkload != nil {
		return *a.defaultWorkload, true
	}

	return models.WorkloadDescriptor{}, false
}
