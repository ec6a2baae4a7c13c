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

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/fleetkeeper/pkg/kv"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

// DefaultKVKey is the key the document is stored under in the KV bucket.
const DefaultKVKey = "fleetkeeper/state"

const maxSaveAttempts = 3

var errSaveConflict = errors.New("fleet state kept changing during save")

// KVRepository keeps the document under a single key of a KV store. Saves
// are compare-and-put against the revision they merged into, so a
// concurrent writer's top-level keys are never overwritten.
type KVRepository struct {
	store kv.KVStore
	key   string
}

func NewKVRepository(store kv.KVStore, key string) *KVRepository {
	if key == "" {
		key = DefaultKVKey
	}

	return &KVRepository{store: store, key: key}
}

func (r *KVRepository) Load(ctx context.Context) (*models.FleetState, error) {
	raw, _, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.key, err)
	}

	return DecodeState(raw)
}

func (r *KVRepository) Save(ctx context.Context, state *models.FleetState) error {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		entry, _, err := r.store.GetEntry(ctx, r.key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", r.key, err)
		}

		out, err := EncodeState(entry.Value, state)
		if err != nil {
			return err
		}

		_, err = r.store.CompareAndPut(ctx, r.key, out, entry.Revision)
		if err == nil {
			return nil
		}

		if !errors.Is(err, kv.ErrRevisionMismatch) {
			return fmt.Errorf("failed to write %s: %w", r.key, err)
		}
	}

	return fmt.Errorf("%w: %s after %d attempts", errSaveConflict, r.key, maxSaveAttempts)
}
