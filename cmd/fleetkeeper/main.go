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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/carverauto/fleetkeeper/pkg/config"
	"github.com/carverauto/fleetkeeper/pkg/keeper"
	"github.com/carverauto/fleetkeeper/pkg/lifecycle"
	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/version"
)

var (
	errFailedToLoadConfig = errors.New("failed to load config")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/fleetkeeper/fleetkeeper.json", "Path to fleetkeeper config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())

		return nil
	}

	ctx := context.Background()

	// Step 1: Load configuration
	cfgLoader := config.NewConfig(nil)

	closeKV, err := cfgLoader.ConnectKVFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	defer func() { _ = closeKV() }()

	var cfg keeper.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Step 2: Create logger from loaded config
	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	keeperLogger, err := lifecycle.CreateComponentLogger(ctx, "keepalive", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shut down telemetry: %v", err)
		}
	}()

	// Step 3: Telemetry pipelines share the log exporter's OTLP settings
	otelCfg := logConfig.OTel

	if _, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName: cfg.ServiceName,
		OTel:        &otelCfg,
	}); err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		keeperLogger.Warn().Err(err).Msg("Metrics export disabled")
	}

	if _, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName: cfg.ServiceName,
		Logger:      keeperLogger,
		OTel:        &otelCfg,
		SampleRatio: cfg.TraceSampleRatio,
	}); err != nil {
		keeperLogger.Warn().Err(err).Msg("Tracing disabled")
	}

	keeperLogger.Info().
		Str("version", version.GetFullVersion()).
		Str("store", cfg.Store.Backend).
		Msg("Starting fleetkeeper")

	// Step 4: Connect backends and run until signalled
	svc, err := keeper.NewService(ctx, &cfg, keeperLogger)
	if err != nil {
		return err
	}

	return lifecycle.RunService(ctx, &lifecycle.ServiceOptions{
		ServiceName:     cfg.ServiceName,
		Service:         svc,
		ShutdownTimeout: cfg.ShutdownTimeout.Std(),
		Logger:          keeperLogger,
	})
}
