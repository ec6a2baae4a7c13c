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

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// KeepAliveAction names the recovery tier a keep-alive event reports on.
type KeepAliveAction string

const (
	ActionRelaunch       KeepAliveAction = "relaunch"
	ActionDeviceRecovery KeepAliveAction = "device_recovery"
	ActionFleetReboot    KeepAliveAction = "fleet_reboot"
	ActionPresenceSweep  KeepAliveAction = "presence_sweep"
)

// KeepAliveEventData is the payload of every keep-alive event.
type KeepAliveEventData struct {
	Action     KeepAliveAction     `json:"action"`
	DeviceID   string              `json:"device_id,omitempty"`
	InstanceID string              `json:"instance_id,omitempty"`
	Identity   string              `json:"identity,omitempty"`
	Workload   *WorkloadDescriptor `json:"workload,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Success    bool                `json:"success"`
	Error      string              `json:"error,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}
