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
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"

	"github.com/carverauto/fleetkeeper/pkg/models"
	"github.com/carverauto/fleetkeeper/pkg/version"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
)

const (
	maxAttributeValueLength = 4096
	defaultScope            = "fleetkeeper"
	componentField          = "component"
)

type OTelConfig struct {
	Enabled      bool              `json:"enabled"`
	Endpoint     string            `json:"endpoint"`
	Headers      map[string]string `json:"headers"`
	ServiceName  string            `json:"service_name"`
	BatchTimeout models.Duration   `json:"batch_timeout"`
	Insecure     bool              `json:"insecure"`
	TLS          *models.TLSConfig `json:"tls,omitempty"`
}

// OTelWriter turns zerolog JSON lines into OTLP log records. The component
// field, when present, names the instrumentation scope.
type OTelWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider
	scopes   sync.Map
}

func NewOTELWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	switch {
	case !config.Enabled:
		return nil, ErrOTelLoggingDisabled
	case config.Endpoint == "":
		return nil, ErrOTelEndpointRequired
	}

	transport, err := newExporterTransport(&config)
	if err != nil {
		return nil, err
	}

	exporter, err := otlploggrpc.New(ctx, transport.logOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName)
	if err != nil {
		return nil, err
	}

	exportTimeout := config.BatchTimeout.Std()
	if exportTimeout <= 0 {
		exportTimeout = 5 * time.Second
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(exportTimeout))),
	)

	global.SetLoggerProvider(provider)
	registerShutdown("logs", provider.Shutdown)

	return &OTelWriter{ctx: ctx, provider: provider}, nil
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version.GetVersion()),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// Write never fails; lines that are not JSON objects are dropped.
func (w *OTelWriter) Write(p []byte) (int, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(p, &fields); err != nil {
		return len(p), nil
	}

	var record log.Record

	scope := defaultScope

	for key, raw := range fields {
		var text string

		isText := json.Unmarshal(raw, &text) == nil

		switch {
		case key == zerolog.TimestampFieldName && isText:
			if ts, err := time.Parse(zerolog.TimeFieldFormat, text); err == nil {
				record.SetTimestamp(ts)

				continue
			}
		case key == zerolog.LevelFieldName && isText:
			record.SetSeverity(severityFor(text))
			record.SetSeverityText(text)

			continue
		case key == zerolog.MessageFieldName && isText:
			record.SetBody(log.StringValue(text))

			continue
		case key == componentField && isText && text != "":
			scope = text

			continue
		}

		record.AddAttributes(log.KeyValue{Key: key, Value: attributeValue(raw)})
	}

	w.scoped(scope).Emit(w.ctx, record)

	return len(p), nil
}

func (w *OTelWriter) scoped(scope string) log.Logger {
	if l, ok := w.scopes.Load(scope); ok {
		return l.(log.Logger)
	}

	l, _ := w.scopes.LoadOrStore(scope, w.provider.Logger(scope))

	return l.(log.Logger)
}

func severityFor(level string) log.Severity {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return log.SeverityInfo
	}

	switch parsed {
	case zerolog.TraceLevel:
		return log.SeverityTrace
	case zerolog.DebugLevel:
		return log.SeverityDebug
	case zerolog.WarnLevel:
		return log.SeverityWarn
	case zerolog.ErrorLevel:
		return log.SeverityError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return log.SeverityFatal
	default:
		return log.SeverityInfo
	}
}

// attributeValue keeps scalar JSON types and flattens everything else to
// its JSON text.
func attributeValue(raw json.RawMessage) log.Value {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return log.StringValue(clip(string(raw), maxAttributeValueLength))
	}

	switch v := v.(type) {
	case nil:
		return log.Value{}
	case string:
		return log.StringValue(clip(v, maxAttributeValueLength))
	case bool:
		return log.BoolValue(v)
	case float64:
		return log.Float64Value(v)
	default:
		return log.StringValue(clip(string(raw), maxAttributeValueLength))
	}
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "..."
}

// ShutdownOTEL flushes and stops every provider installed by this package.
func ShutdownOTEL() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return shutdownProviders(ctx)
}
