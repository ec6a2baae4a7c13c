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
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/carverauto/fleetkeeper/pkg/cli"
	"github.com/carverauto/fleetkeeper/pkg/config"
	"github.com/carverauto/fleetkeeper/pkg/keeper"
	"github.com/carverauto/fleetkeeper/pkg/lifecycle"
	"github.com/carverauto/fleetkeeper/pkg/logger"
)

var (
	errFailedToLoadConfig = errors.New("failed to load config")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	cfg, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		return err
	}

	if cfg.Help || cfg.SubCmd == "" {
		cli.ShowHelp()

		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgLoader := config.NewConfig(nil)

	closeKV, err := cfgLoader.ConnectKVFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	defer func() { _ = closeKV() }()

	var keeperCfg keeper.Config

	if err := cfgLoader.LoadAndValidate(ctx, cfg.ConfigFile, &keeperCfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Command output goes to stdout; keep logs on stderr and local only.
	logConfig := logger.DefaultConfig()
	if keeperCfg.Logging != nil {
		logConfig.Debug = keeperCfg.Logging.Debug
	}

	logConfig.Level = "warn"
	logConfig.Output = "stderr"
	logConfig.OTel.Enabled = false

	cliLogger, err := lifecycle.CreateComponentLogger(ctx, "fleetctl", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// The one-shot commands never publish keep-alive events.
	keeperCfg.Events = nil

	svc, err := keeper.NewService(ctx, &keeperCfg, cliLogger)
	if err != nil {
		return err
	}

	defer func() {
		if err := svc.Close(); err != nil {
			cliLogger.Warn().Err(err).Msg("Failed to close backends")
		}
	}()

	return cli.NewApp(svc, os.Stdout).Run(ctx, cfg)
}
