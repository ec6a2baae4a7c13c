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
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBucketDown = errors.New("bucket unavailable")

type fakeEntry struct {
	jetstream.KeyValueEntry
	key      string
	value    []byte
	revision uint64
	op       jetstream.KeyValueOp
}

func (e fakeEntry) Key() string                     { return e.key }
func (e fakeEntry) Value() []byte                   { return e.value }
func (e fakeEntry) Revision() uint64                { return e.revision }
func (e fakeEntry) Operation() jetstream.KeyValueOp { return e.op }

type fakeWatcher struct {
	updates chan jetstream.KeyValueEntry
	stopped bool
}

func (w *fakeWatcher) Updates() <-chan jetstream.KeyValueEntry { return w.updates }
func (w *fakeWatcher) Stop() error {
	w.stopped = true

	return nil
}

// fakeKV implements the parts of jetstream.KeyValue NatsStore calls.
type fakeKV struct {
	jetstream.KeyValue

	mu       sync.Mutex
	data     map[string]fakeEntry
	revision uint64
	putErr   error
	watcher  *fakeWatcher
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]fakeEntry)}
}

func (f *fakeKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}

	return e, nil
}

func (f *fakeKV) store(key string, value []byte) uint64 {
	f.revision++
	f.data[key] = fakeEntry{key: key, value: value, revision: f.revision, op: jetstream.KeyValuePut}

	return f.revision
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return 0, f.putErr
	}

	return f.store(key, value), nil
}

func (f *fakeKV) Update(_ context.Context, key string, value []byte, last uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e, ok := f.data[key]; !ok || e.revision != last {
		return 0, &jetstream.APIError{
			Code:        400,
			ErrorCode:   jetstreamWrongLastSequence,
			Description: "wrong last sequence",
		}
	}

	return f.store(key, value), nil
}

func (f *fakeKV) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data[key]; !ok {
		return jetstream.ErrKeyNotFound
	}

	delete(f.data, key)

	return nil
}

func (f *fakeKV) Watch(_ context.Context, _ string, _ ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	return f.watcher, nil
}

func TestNatsStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	store := newNatsStoreFromKV(ctx, newFakeKV(), nil)

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	rev, err := store.Put(ctx, "a", []byte("1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rev)

	entry, found, err := store.GetEntry(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, Entry{Value: []byte("1"), Revision: 1}, entry)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"), "deleting a missing key is not an error")
	require.NoError(t, store.Close())
}

func TestNatsStorePutError(t *testing.T) {
	kv := newFakeKV()
	kv.putErr = errBucketDown

	store := newNatsStoreFromKV(context.Background(), kv, nil)

	_, err := store.Put(context.Background(), "a", []byte("1"))
	require.ErrorIs(t, err, errBucketDown)
}

func TestNatsStoreCompareAndPut(t *testing.T) {
	ctx := context.Background()
	store := newNatsStoreFromKV(ctx, newFakeKV(), nil)

	rev, err := store.Put(ctx, "state", []byte("v1"))
	require.NoError(t, err)

	next, err := store.CompareAndPut(ctx, "state", []byte("v2"), rev)
	require.NoError(t, err)
	assert.Greater(t, next, rev)

	_, err = store.CompareAndPut(ctx, "state", []byte("v3"), rev)
	require.ErrorIs(t, err, ErrRevisionMismatch)

	value, _, err := store.Get(ctx, "state")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
}

func TestNatsStoreWatch(t *testing.T) {
	kv := newFakeKV()
	kv.watcher = &fakeWatcher{updates: make(chan jetstream.KeyValueEntry, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newNatsStoreFromKV(ctx, kv, nil)

	ch, err := store.Watch(ctx, "state")
	require.NoError(t, err)

	kv.watcher.updates <- fakeEntry{key: "state", value: []byte("v1"), op: jetstream.KeyValuePut}
	kv.watcher.updates <- nil
	kv.watcher.updates <- fakeEntry{key: "state", op: jetstream.KeyValueDelete}

	select {
	case v := <-ch:
		assert.Equal(t, []byte("v1"), v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first update")
	}

	select {
	case v := <-ch:
		assert.Nil(t, v, "deletes are delivered as nil")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delete")
	}

	close(kv.watcher.updates)

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after watcher ended")
	}
}
