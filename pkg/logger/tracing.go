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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
)

// TracingConfig holds the configuration for OpenTelemetry tracing setup.
type TracingConfig struct {
	ServiceName string
	Logger      Logger
	OTel        *OTelConfig
	// SampleRatio samples root spans; child spans follow their parent.
	// Values outside (0, 1) sample everything.
	SampleRatio float64
}

func (c TracingConfig) sampler() trace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return trace.ParentBased(trace.AlwaysSample())
	}

	return trace.ParentBased(trace.TraceIDRatioBased(c.SampleRatio))
}

func (c TracingConfig) exporting() bool {
	return c.OTel != nil && c.OTel.Enabled && c.OTel.Endpoint != ""
}

// InitializeTracing installs a global TracerProvider so keep-alive ticks
// produce spans. Without an OTLP endpoint spans stay in process.
func InitializeTracing(ctx context.Context, config TracingConfig) (*trace.TracerProvider, error) {
	res, err := newResource(ctx, config.ServiceName)
	if err != nil {
		return nil, err
	}

	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(config.sampler()),
	}

	if config.exporting() {
		transport, err := newExporterTransport(config.OTel)
		if err != nil {
			return nil, err
		}

		exporter, err := otlptracegrpc.New(ctx, transport.traceOptions()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		opts = append(opts, trace.WithBatcher(exporter))
	}

	tp := trace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	registerShutdown("tracing", tp.Shutdown)

	if config.Logger != nil {
		config.Logger.Debug().
			Str("service", config.ServiceName).
			Bool("exporting", config.exporting()).
			Float64("sample_ratio", config.SampleRatio).
			Msg("Initialized OpenTelemetry tracing")
	}

	return tp, nil
}
