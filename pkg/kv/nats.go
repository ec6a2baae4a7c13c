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

package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/natsutil"
)

// jetstreamWrongLastSequence is the JetStream API error code for a failed
// expected-revision check.
const jetstreamWrongLastSequence jetstream.ErrorCode = 10071

// NatsStore is a KVStore backed by a JetStream key-value bucket.
type NatsStore struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	ctx    context.Context
	logger logger.Logger
}

// NewNatsStore connects to NATS and opens the bucket named in cfg, creating
// it when missing.
func NewNatsStore(ctx context.Context, cfg *Config, log logger.Logger) (*NatsStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nc, err := natsutil.Connect(ctx, cfg.NATSURL, cfg.TLS, log)
	if err != nil {
		return nil, err
	}

	var js jetstream.JetStream
	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "fleetkeeper config and keep-alive state",
		History:     cfg.History,
		MaxBytes:    cfg.MaxBytes,
		Replicas:    cfg.Replicas,
	})
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to open KV bucket %s: %w", cfg.Bucket, err)
	}

	store := newNatsStoreFromKV(ctx, kv, log)
	store.nc = nc

	return store, nil
}

func newNatsStoreFromKV(ctx context.Context, kv jetstream.KeyValue, log logger.Logger) *NatsStore {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &NatsStore{kv: kv, ctx: ctx, logger: log}
}

func (n *NatsStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, found, err := n.GetEntry(ctx, key)

	return entry.Value, found, err
}

func (n *NatsStore) GetEntry(ctx context.Context, key string) (Entry, bool, error) {
	kve, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return Entry{}, false, nil
	}

	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return Entry{Value: kve.Value(), Revision: kve.Revision()}, true, nil
}

func (n *NatsStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := n.kv.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return rev, nil
}

func (n *NatsStore) CompareAndPut(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	var (
		rev uint64
		err error
	)

	if revision == 0 {
		rev, err = n.kv.Create(ctx, key, value)
	} else {
		rev, err = n.kv.Update(ctx, key, value, revision)
	}

	if isRevisionConflict(err) {
		return 0, fmt.Errorf("%w: key %s at revision %d", ErrRevisionMismatch, key, revision)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to update key %s: %w", key, err)
	}

	return rev, nil
}

func isRevisionConflict(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError

	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstreamWrongLastSequence
}

func (n *NatsStore) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

func (n *NatsStore) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	watcher, err := n.kv.Watch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to watch key %s: %w", key, err)
	}

	ch := make(chan []byte, 1)
	go n.handleWatchUpdates(ctx, key, watcher, ch)

	return ch, nil
}

// handleWatchUpdates processes updates from the watcher and sends them to the channel.
func (n *NatsStore) handleWatchUpdates(ctx context.Context, key string, watcher jetstream.KeyWatcher, ch chan<- []byte) {
	defer func() {
		if err := watcher.Stop(); err != nil {
			n.logger.Debug().Str("key", key).Err(err).Msg("Failed to stop KV watcher")
		}

		close(ch)
	}()

	for {
		update, ok := n.waitForUpdate(ctx, watcher)
		if !ok {
			return
		}

		// nil marks the end of the initial values
		if update == nil {
			continue
		}

		var value []byte
		if op := update.Operation(); op != jetstream.KeyValueDelete && op != jetstream.KeyValuePurge {
			value = update.Value()
		}

		if !n.sendUpdate(ctx, ch, value) {
			return
		}
	}
}

// waitForUpdate waits for the next update or context cancellation.
func (n *NatsStore) waitForUpdate(ctx context.Context, watcher jetstream.KeyWatcher) (jetstream.KeyValueEntry, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-n.ctx.Done():
		return nil, false
	case update, ok := <-watcher.Updates():
		return update, ok
	}
}

// sendUpdate attempts to send the value to the channel, respecting context cancellation.
func (n *NatsStore) sendUpdate(ctx context.Context, ch chan<- []byte, value []byte) bool {
	select {
	case ch <- value:
		return true
	case <-ctx.Done():
		return false
	case <-n.ctx.Done():
		return false
	}
}

func (n *NatsStore) Close() error {
	if n.nc != nil {
		n.nc.Close()
	}

	return nil
}

var _ KVStore = (*NatsStore)(nil)
