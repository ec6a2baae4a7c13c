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

// Package store persists the keep-alive document to a file, a NATS KV bucket
// or Postgres.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

var (
	// ErrMalformedState is returned when the persisted document cannot be decoded.
	ErrMalformedState = errors.New("malformed fleet state document")
)

// decodeDocument splits a persisted document into its top-level keys. Empty
// input is an empty document.
func decodeDocument(raw []byte) (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	if len(raw) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedState, err)
	}

	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}

	return doc, nil
}

// DecodeState extracts the keep-alive state from a persisted document. A
// missing key yields an empty state.
func DecodeState(raw []byte) (*models.FleetState, error) {
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}

	return stateFromDocument(doc)
}

func stateFromDocument(doc map[string]json.RawMessage) (*models.FleetState, error) {
	state := &models.FleetState{}

	section, ok := doc[models.StateDocumentKey]
	if !ok || string(section) == "null" {
		return normalize(state), nil
	}

	if err := json.Unmarshal(section, state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedState, err)
	}

	return normalize(state), nil
}

// EncodeState writes state under the keep-alive key of the document in raw,
// leaving every other top-level key untouched.
func EncodeState(raw []byte, state *models.FleetState) ([]byte, error) {
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}

	section, err := json.Marshal(normalize(state.Clone()))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fleet state: %w", err)
	}

	doc[models.StateDocumentKey] = section

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	return out, nil
}

// normalize replaces nil lists with empty ones so documents always carry
// arrays.
func normalize(state *models.FleetState) *models.FleetState {
	if state.UsernameAssignments == nil {
		state.UsernameAssignments = []models.UsernameAssignment{}
	}

	if state.InstanceCache == nil {
		state.InstanceCache = []models.InstanceCacheRecord{}
	}

	if state.WorkloadTemplates == nil {
		state.WorkloadTemplates = []models.WorkloadTemplate{}
	}

	return state
}
