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

package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carverauto/fleetkeeper/pkg/adb"
	"github.com/carverauto/fleetkeeper/pkg/fleet"
	"github.com/carverauto/fleetkeeper/pkg/kv"
	"github.com/carverauto/fleetkeeper/pkg/lifecycle"
	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
	"github.com/carverauto/fleetkeeper/pkg/natsutil"
	"github.com/carverauto/fleetkeeper/pkg/resolver"
	"github.com/carverauto/fleetkeeper/pkg/store"
)

var (
	errAlreadyStarted = errors.New("keep-alive service already started")
	errStopTimeout    = errors.New("timed out waiting for keep-alive loop to stop")
)

// Service owns the keep-alive loop and the connections it depends on.
type Service struct {
	cfg     *Config
	deps    fleet.Deps
	logger  logger.Logger
	closers []func() error

	mu      sync.Mutex
	loop    *fleet.KeepAlive
	cancel  context.CancelFunc
	done    chan struct{}
	loopErr error
}

var (
	_ lifecycle.Service = (*Service)(nil)
	_ lifecycle.Exiter  = (*Service)(nil)
)

// NewService connects every configured backend. cfg must already be
// validated.
func NewService(ctx context.Context, cfg *Config, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewTestLogger()
	}

	s := &Service{cfg: cfg, logger: log}

	deps, err := s.buildDeps(ctx)
	if err != nil {
		_ = s.Close()

		return nil, err
	}

	s.deps = deps

	return s, nil
}

// NewServiceWithDeps builds a service over already constructed
// collaborators.
func NewServiceWithDeps(cfg *Config, deps fleet.Deps, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewTestLogger()
	}

	if deps.Logger == nil {
		deps.Logger = log
	}

	return &Service{cfg: cfg, deps: deps, logger: log}
}

func (s *Service) buildDeps(ctx context.Context) (fleet.Deps, error) {
	gateway, err := adb.NewClient(&s.cfg.ADB, adb.ExecRunner{}, s.logger)
	if err != nil {
		return fleet.Deps{}, fmt.Errorf("failed to create adb gateway: %w", err)
	}

	identities, err := resolver.NewShellIdentityResolver(gateway, &s.cfg.Identity, s.logger)
	if err != nil {
		return fleet.Deps{}, fmt.Errorf("failed to create identity resolver: %w", err)
	}

	deps := fleet.Deps{
		Gateway:    gateway,
		Identities: identities,
		Logger:     s.logger,
	}

	if s.cfg.Presence != nil {
		presence, err := resolver.NewHTTPPresenceResolver(s.cfg.Presence, nil, s.logger)
		if err != nil {
			return fleet.Deps{}, fmt.Errorf("failed to create presence resolver: %w", err)
		}

		deps.Presence = presence
	}

	if deps.Repository, err = s.openRepository(ctx); err != nil {
		return fleet.Deps{}, err
	}

	if s.cfg.Events != nil && s.cfg.Events.Enabled {
		events, err := s.openEvents(ctx)
		if err != nil {
			return fleet.Deps{}, err
		}

		deps.Events = events
	}

	return deps, nil
}

func (s *Service) openRepository(ctx context.Context) (fleet.Repository, error) {
	sc := s.cfg.Store

	switch sc.Backend {
	case BackendKV:
		st, err := kv.NewNatsStore(ctx, sc.KV, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open kv store: %w", err)
		}

		s.closers = append(s.closers, st.Close)

		return store.NewKVRepository(st, sc.KVKey), nil
	case BackendPostgres:
		pool, err := store.NewPostgresPool(ctx, sc.Postgres, s.logger)
		if err != nil {
			return nil, err
		}

		s.closers = append(s.closers, func() error {
			pool.Close()

			return nil
		})

		repo := store.NewPostgresRepository(pool, sc.Postgres.DocumentName)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}

		return repo, nil
	default:
		return store.NewFileRepository(sc.Path), nil
	}
}

func (s *Service) openEvents(ctx context.Context) (*natsutil.EventPublisher, error) {
	ec := s.cfg.Events

	nc, err := natsutil.Connect(ctx, ec.NATSURL, ec.TLS, s.logger)
	if err != nil {
		return nil, err
	}

	s.closers = append(s.closers, nc.Drain)

	pub, err := natsutil.CreateEventPublisherWithDomain(ctx, nc, ec.Domain, ec.stream(), ec.Subjects, s.logger)
	if err != nil {
		return nil, err
	}

	pub.SetSubjectPrefix(ec.SubjectPrefix)

	return pub, nil
}

// Repository returns the repository the service persists through.
func (s *Service) Repository() fleet.Repository {
	return s.deps.Repository
}

// Start loads the persisted document and starts the loop in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loop != nil {
		return errAlreadyStarted
	}

	state, err := s.deps.Repository.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", fleet.ErrLoadState, err)
	}

	loop, err := fleet.NewKeepAlive(s.deps, state, s.cfg.Settings().ApplyState(state))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		err := loop.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("Keep-alive loop stopped")
		}

		s.mu.Lock()
		s.loopErr = err
		s.mu.Unlock()

		close(done)
	}()

	s.loop = loop
	s.cancel = cancel
	s.done = done

	return nil
}

// Stop cancels the loop, waits for the current tick to wind down and
// releases connections.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	var loopErr error

	if cancel != nil {
		cancel()

		select {
		case <-done:
			loopErr = s.Err()
		case <-ctx.Done():
			loopErr = errStopTimeout
		}
	}

	return errors.Join(loopErr, s.Close())
}

// Done is closed when the background loop exits. It is nil before Start.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done
}

// Err reports why the background loop exited. Cancellation is not an error.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(s.loopErr, context.Canceled) {
		return nil
	}

	return s.loopErr
}

// Run runs the loop in the foreground until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	return fleet.RunKeepAlive(ctx, s.deps, s.cfg.Settings())
}

// Session reports the running loop's counters.
func (s *Service) Session() (fleet.Session, fleet.LoopState, bool) {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()

	if loop == nil {
		return fleet.Session{}, fleet.StateIdle, false
	}

	return loop.Session(), loop.State(), true
}

// Scan runs one aggregation pass outside the loop.
func (s *Service) Scan(ctx context.Context) ([]models.DeviceSnapshot, error) {
	state, err := s.deps.Repository.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fleet.ErrLoadState, err)
	}

	aggregator, err := fleet.NewAggregator(s.deps, state, s.cfg.Settings().ApplyState(state))
	if err != nil {
		return nil, err
	}

	return aggregator.Scan(ctx)
}

// Close releases backend connections.
func (s *Service) Close() error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
