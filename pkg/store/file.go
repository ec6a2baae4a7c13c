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
	"os"
	"path/filepath"
	"sync"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

// FileRepository keeps the document in a JSON file on disk.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the file the repository reads and writes.
func (r *FileRepository) Path() string {
	return r.path
}

func (r *FileRepository) Load(_ context.Context) (*models.FleetState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.read()
	if err != nil {
		return nil, err
	}

	return DecodeState(raw)
}

// Save replaces the keep-alive section of the file. The file is written to a
// temp file in the same directory and renamed into place.
func (r *FileRepository) Save(_ context.Context, state *models.FleetState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.read()
	if err != nil {
		return err
	}

	out, err := EncodeState(raw, state)
	if err != nil {
		return err
	}

	return writeFileAtomic(r.path, out)
}

func (r *FileRepository) read() ([]byte, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}

	return raw, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpName := tmp.Name()

	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		cleanup()

		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		cleanup()

		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()

		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		cleanup()

		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
