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

import "time"

// StateDocumentKey is the top-level key FleetState lives under in the
// persisted config document.
const StateDocumentKey = "keepAlive"

// WorkloadDescriptor is an opaque launch target plus a display name. Values
// are replaced wholesale on edit.
type WorkloadDescriptor struct {
	Target string `json:"target"`
	Name   string `json:"name"`
}

// UsernameAssignment maps one identity to the workload it should run.
type UsernameAssignment struct {
	Identity string             `json:"identity"`
	Workload WorkloadDescriptor `json:"workload"`
}

// CacheOutcome records how the last identity check for an instance ended.
type CacheOutcome string

const (
	CacheOutcomeFound CacheOutcome = "found"
	CacheOutcomeEmpty CacheOutcome = "empty"
	CacheOutcomeError CacheOutcome = "error"
)

// InstanceCacheRecord is the persisted form of an identity cache entry.
type InstanceCacheRecord struct {
	DeviceID        string       `json:"deviceId"`
	InstanceID      string       `json:"instanceId"`
	Identity        *string      `json:"identity,omitempty"`
	LastCookieCheck *time.Time   `json:"lastCookieCheck,omitempty"`
	LastOutcome     CacheOutcome `json:"lastOutcome,omitempty"`
}

// WorkloadTemplate is a named workload operators can apply to identities.
type WorkloadTemplate struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Workload  WorkloadDescriptor `json:"workload"`
	CreatedAt time.Time          `json:"createdAt"`
}

// FleetState is the persisted keep-alive document.
type FleetState struct {
	UsernameAssignments []UsernameAssignment  `json:"usernameAssignments"`
	InstanceCache       []InstanceCacheRecord `json:"instanceCache"`
	// KeepAliveInterval is in seconds.
	KeepAliveInterval int `json:"keepAliveInterval"`
	// AutoRebootInterval is in hours; zero disables scheduled fleet reboots.
	AutoRebootInterval float64 `json:"autoRebootInterval"`
	// PresenceCheckInterval is in minutes; zero disables presence checks.
	PresenceCheckInterval int                 `json:"presenceCheckInterval"`
	DeviceTimeoutSeconds  int                 `json:"deviceTimeoutSeconds"`
	DefaultWorkload       *WorkloadDescriptor `json:"defaultWorkload,omitempty"`
	WorkloadTemplates     []WorkloadTemplate  `json:"workloadTemplates"`
}

// Clone returns a deep copy so edits never alias the original.
func (s *FleetState) Clone() *FleetState {
	if s == nil {
		return &FleetState{}
	}

	out := *s
	out.UsernameAssignments = append([]UsernameAssignment(nil), s.UsernameAssignments...)
	out.WorkloadTemplates = append([]WorkloadTemplate(nil), s.WorkloadTemplates...)

	out.InstanceCache = make([]InstanceCacheRecord, len(s.InstanceCache))
	for i, rec := range s.InstanceCache {
		out.InstanceCache[i] = rec.clone()
	}

	if s.DefaultWorkload != nil {
		w := *s.DefaultWorkload
		out.DefaultWorkload = &w
	}

	return &out
}

func (r InstanceCacheRecord) clone() InstanceCacheRecord {
	out := r

	if r.Identity != nil {
		id := *r.Identity
		out.Identity = &id
	}

	if r.LastCookieCheck != nil {
		ts := *r.LastCookieCheck
		out.LastCookieCheck = &ts
	}

	return out
}
