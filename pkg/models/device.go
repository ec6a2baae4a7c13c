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

// DeviceStatus is the state a device reports in the gateway's device list.
type DeviceStatus string

const (
	DeviceStatusReady        DeviceStatus = "device"
	DeviceStatusOffline      DeviceStatus = "offline"
	DeviceStatusUnauthorized DeviceStatus = "unauthorized"
	DeviceStatusBooting      DeviceStatus = "booting"
	DeviceStatusUnknown      DeviceStatus = "unknown"
)

// Ready reports whether the device accepts shell commands.
func (s DeviceStatus) Ready() bool {
	return s == DeviceStatusReady
}

// DeviceListing is one entry of the gateway's device list.
type DeviceListing struct {
	ID     string       `json:"id"`
	Status DeviceStatus `json:"status"`
	Model  string       `json:"model,omitempty"`
}

// Device is a connected host running zero or more instances.
type Device struct {
	ID         string       `json:"id"`
	Model      string       `json:"model,omitempty"`
	Status     DeviceStatus `json:"status"`
	Responsive bool         `json:"responsive"`
}

// InstanceSnapshot is the derived state of one instance at scan time.
type InstanceSnapshot struct {
	InstanceID string              `json:"instanceId"`
	Running    bool                `json:"running"`
	Identity   Identity            `json:"identity"`
	Workload   *WorkloadDescriptor `json:"workload,omitempty"`
	Presence   Presence            `json:"presence"`
}

// Assigned reports whether the instance has both an identity and a workload.
func (s *InstanceSnapshot) Assigned() bool {
	return s.Workload != nil && s.Identity.IsKnown()
}

// DeviceSnapshot aggregates one device and all of its instances.
type DeviceSnapshot struct {
	Device    Device             `json:"device"`
	Instances []InstanceSnapshot `json:"instances"`
	ScannedAt time.Time          `json:"scannedAt"`
	Error     string             `json:"error,omitempty"`
}
