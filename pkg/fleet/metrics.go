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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

const (
	meterName                = "fleetkeeper.fleet"
	metricScanDuration       = "fleet_scan_duration_seconds"
	metricScanDevices        = "fleet_scan_devices"
	metricIdentityResolution = "fleet_identity_resolution_total"
	metricRelaunchTotal      = "fleet_relaunch_total"
	metricRecoveryTotal      = "fleet_device_recovery_total"
	metricFleetRebootTotal   = "fleet_reboot_total"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	scanHistogram metric.Float64Histogram
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	scanDevicesGauge metric.Int64Gauge
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	identityCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	relaunchCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	recoveryCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	rebootCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	hist, err := meter.Float64Histogram(
		metricScanDuration,
		metric.WithDescription("Duration of full fleet scans"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	scanHistogram = hist

	gauge, err := meter.Int64Gauge(
		metricScanDevices,
		metric.WithDescription("Devices seen by the last fleet scan"),
	)
	if err != nil {
		otel.Handle(err)
	}
	scanDevicesGauge = gauge

	identity, err := meter.Int64Counter(
		metricIdentityResolution,
		metric.WithDescription("Identity resolutions by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	identityCounter = identity

	relaunch, err := meter.Int64Counter(
		metricRelaunchTotal,
		metric.WithDescription("Instance relaunch attempts"),
	)
	if err != nil {
		otel.Handle(err)
	}
	relaunchCounter = relaunch

	recovery, err := meter.Int64Counter(
		metricRecoveryTotal,
		metric.WithDescription("Device reboot-and-wait recovery attempts"),
	)
	if err != nil {
		otel.Handle(err)
	}
	recoveryCounter = recovery

	reboot, err := meter.Int64Counter(
		metricFleetRebootTotal,
		metric.WithDescription("Scheduled fleet reboots"),
	)
	if err != nil {
		otel.Handle(err)
	}
	rebootCounter = reboot
}

func recordScan(ctx context.Context, elapsed time.Duration, devices int) {
	meterOnce.Do(initMeter)

	if scanHistogram != nil {
		scanHistogram.Record(ctx, elapsed.Seconds())
	}

	if scanDevicesGauge != nil {
		scanDevicesGauge.Record(ctx, int64(devices))
	}
}

func recordIdentityResolution(ctx context.Context, outcome models.CacheOutcome) {
	meterOnce.Do(initMeter)
	if identityCounter == nil {
		return
	}

	identityCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

func recordRelaunch(ctx context.Context, reason string, success bool) {
	meterOnce.Do(initMeter)
	if relaunchCounter == nil {
		return
	}

	relaunchCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.Bool("success", success),
	))
}

func recordRecovery(ctx context.Context, success bool) {
	meterOnce.Do(initMeter)
	if recoveryCounter == nil {
		return
	}

	recoveryCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func recordFleetReboot(ctx context.Context, success bool) {
	meterOnce.Do(initMeter)
	if rebootCounter == nil {
		return
	}

	rebootCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
