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

//go:generate mockgen -destination=mock_kv.go -package=kv github.com/carverauto/fleetkeeper/pkg/kv KVStore

// Package kv holds the config and keep-alive documents in a revisioned
// key-value bucket.
package kv

import (
	"context"
)

// Entry is a stored value and the revision that wrote it.
type Entry struct {
	Value    []byte
	Revision uint64
}

// KVStore is shared by the KV config loader and the KV state repository.
type KVStore interface {
	// Get reports found=false with a nil error for a missing key.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetEntry is Get with the entry's revision.
	GetEntry(ctx context.Context, key string) (Entry, bool, error)

	// Put writes value unconditionally and returns the new revision.
	Put(ctx context.Context, key string, value []byte) (uint64, error)

	// CompareAndPut writes value only while key is still at revision. A zero
	// revision requires the key to be absent. A lost race is reported as
	// ErrRevisionMismatch.
	CompareAndPut(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)

	Delete(ctx context.Context, key string) error

	// Watch sends each new value of key, nil for deletes, until ctx ends or
	// the store is closed.
	Watch(ctx context.Context, key string) (<-chan []byte, error)

	Close() error
}
