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

package logger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	defaultMetricExportInterval = 15 * time.Second
	defaultMetricExportTimeout  = 10 * time.Second
)

var ErrOTelMetricsDisabled = errors.New("OTel metrics exporter disabled")

//nolint:gochecknoglobals // one meter provider per process
var meterState struct {
	sync.Mutex
	provider *sdkmetric.MeterProvider
}

// MetricsConfig captures what the OTLP metrics pipeline needs.
type MetricsConfig struct {
	ServiceName    string
	OTel           *OTelConfig
	ExportInterval time.Duration
	ExportTimeout  time.Duration
}

func (c MetricsConfig) readerOptions() []sdkmetric.PeriodicReaderOption {
	interval := c.ExportInterval
	if interval <= 0 {
		interval = defaultMetricExportInterval
	}

	timeout := c.ExportTimeout
	if timeout <= 0 || timeout > interval {
		timeout = min(defaultMetricExportTimeout, interval)
	}

	return []sdkmetric.PeriodicReaderOption{
		sdkmetric.WithInterval(interval),
		sdkmetric.WithTimeout(timeout),
	}
}

// InitializeMetrics installs the global MeterProvider that the fleet
// instruments record into. Only the first call builds a provider.
func InitializeMetrics(ctx context.Context, config MetricsConfig) (*sdkmetric.MeterProvider, error) {
	if config.OTel == nil || !config.OTel.Enabled || config.OTel.Endpoint == "" {
		return nil, ErrOTelMetricsDisabled
	}

	meterState.Lock()
	defer meterState.Unlock()

	if meterState.provider != nil {
		return meterState.provider, nil
	}

	transport, err := newExporterTransport(config.OTel)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx, transport.metricOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, config.readerOptions()...)),
	)

	otel.SetMeterProvider(provider)
	meterState.provider = provider

	registerShutdown("metrics", func(ctx context.Context) error {
		meterState.Lock()
		defer meterState.Unlock()

		p := meterState.provider
		meterState.provider = nil

		if p == nil {
			return nil
		}

		return p.Shutdown(ctx)
	})

	return provider, nil
}
