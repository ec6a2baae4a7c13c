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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/fleetkeeper/pkg/logger"
)

const defaultShutdownTimeout = 30 * time.Second

var (
	ErrServiceRequired = errors.New("service is required")
	errServiceStart    = errors.New("failed to start service")
	errServiceStop     = errors.New("failed to stop service")
	errServiceExited   = errors.New("service exited")
)

// Service is a long-running component. Start returns once background work
// is running; Stop waits for it to finish.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Exiter is implemented by services whose background work can end on its
// own. Done is closed on exit and Err then reports the cause.
type Exiter interface {
	Done() <-chan struct{}
	Err() error
}

// ServiceOptions configures RunService.
type ServiceOptions struct {
	ServiceName     string
	Service         Service
	ShutdownTimeout time.Duration
	Logger          logger.Logger
	// Signals defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// RunService starts the service and blocks until ctx ends, a shutdown
// signal arrives or an Exiter service exits, then stops it within the
// shutdown timeout. An exit with an error is returned.
func RunService(ctx context.Context, opts *ServiceOptions) error {
	if opts == nil || opts.Service == nil {
		return ErrServiceRequired
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()

	log.Info().Str("service", opts.ServiceName).Msg("Starting service")

	if err := opts.Service.Start(ctx); err != nil {
		return fmt.Errorf("%w %s: %w", errServiceStart, opts.ServiceName, err)
	}

	var exited <-chan struct{}
	if e, ok := opts.Service.(Exiter); ok {
		exited = e.Done()
	}

	var exitErr error

	select {
	case <-ctx.Done():
		log.Info().Str("service", opts.ServiceName).Msg("Shutting down service")
	case <-exited:
		if err := opts.Service.(Exiter).Err(); err != nil {
			exitErr = fmt.Errorf("%w %s: %w", errServiceExited, opts.ServiceName, err)
		}

		log.Warn().Str("service", opts.ServiceName).Err(exitErr).Msg("Service exited, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := opts.Service.Stop(shutdownCtx); err != nil {
		if exitErr == nil {
			return fmt.Errorf("%w %s: %w", errServiceStop, opts.ServiceName, err)
		}

		log.Error().Str("service", opts.ServiceName).Err(err).Msg("Failed to stop service")
	}

	if exitErr != nil {
		return exitErr
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service stopped")

	return nil
}
