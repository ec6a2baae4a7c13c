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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"google.golang.org/grpc/credentials"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

var errFailedToParseCACert = errors.New("failed to parse CA certificate")

// exporterTransport is the gRPC connection setup shared by the log, metric
// and trace exporters.
type exporterTransport struct {
	endpoint string
	insecure bool
	creds    credentials.TransportCredentials
	headers  map[string]string
}

func newExporterTransport(cfg *OTelConfig) (exporterTransport, error) {
	t := exporterTransport{
		endpoint: cfg.Endpoint,
		insecure: cfg.Insecure,
		headers:  cfg.Headers,
	}

	if t.insecure || cfg.TLS == nil {
		return t, nil
	}

	tlsConfig, err := clientTLSConfig(cfg.TLS)
	if err != nil {
		return exporterTransport{}, fmt.Errorf("failed to setup OTLP TLS configuration: %w", err)
	}

	t.creds = credentials.NewTLS(tlsConfig)

	return t, nil
}

func (t exporterTransport) logOptions() []otlploggrpc.Option {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(t.endpoint)}

	switch {
	case t.insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case t.creds != nil:
		opts = append(opts, otlploggrpc.WithTLSCredentials(t.creds))
	}

	if len(t.headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(t.headers))
	}

	return opts
}

func (t exporterTransport) metricOptions() []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(t.endpoint)}

	switch {
	case t.insecure:
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	case t.creds != nil:
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(t.creds))
	}

	if len(t.headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(t.headers))
	}

	return opts
}

func (t exporterTransport) traceOptions() []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.endpoint)}

	switch {
	case t.insecure:
		opts = append(opts, otlptracegrpc.WithInsecure())
	case t.creds != nil:
		opts = append(opts, otlptracegrpc.WithTLSCredentials(t.creds))
	}

	if len(t.headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(t.headers))
	}

	return opts
}

func clientTLSConfig(cfg *models.TLSConfig) (*tls.Config, error) {
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		config.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errFailedToParseCACert
		}

		config.RootCAs = pool
	}

	return config, nil
}

// providerShutdowns collects the shutdown hooks of installed providers in
// the order they were registered.
//
//nolint:gochecknoglobals // shared by ShutdownOTEL
var providerShutdowns = struct {
	sync.Mutex
	hooks map[string]func(context.Context) error
	order []string
}{hooks: make(map[string]func(context.Context) error)}

func registerShutdown(name string, fn func(context.Context) error) {
	providerShutdowns.Lock()
	defer providerShutdowns.Unlock()

	if _, ok := providerShutdowns.hooks[name]; !ok {
		providerShutdowns.order = append(providerShutdowns.order, name)
	}

	providerShutdowns.hooks[name] = fn
}

func shutdownProviders(ctx context.Context) error {
	providerShutdowns.Lock()
	hooks := providerShutdowns.hooks
	order := providerShutdowns.order
	providerShutdowns.hooks = make(map[string]func(context.Context) error)
	providerShutdowns.order = nil
	providerShutdowns.Unlock()

	var errs []error

	for i := len(order) - 1; i >= 0; i-- {
		if err := hooks[order[i]](ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", order[i], err))
		}
	}

	return errors.Join(errs...)
}
