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

package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/carverauto/fleetkeeper/pkg/fleet"
	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
	"github.com/carverauto/fleetkeeper/pkg/version"
)

const (
	identityPlaceholder = "{identity}"
	defaultHTTPTimeout  = 15 * time.Second
	maxErrorBody        = 2048
	defaultEngagedField = "engaged"
)

// HTTPPresenceConfig configures presence lookups against an HTTP service.
type HTTPPresenceConfig struct {
	// URL is a template with {identity} replaced by the escaped identity.
	URL     string          `json:"url"`
	APIKey  string          `json:"api_key,omitempty"`
	Timeout models.Duration `json:"timeout,omitempty"`
	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64 `json:"rate_limit,omitempty"`
	// Field is the boolean response field; defaults to "engaged".
	Field string `json:"field,omitempty"`
}

func (c *HTTPPresenceConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errURLRequired
	}

	if !strings.Contains(c.URL, identityPlaceholder) {
		return errIdentityPattern
	}

	if c.Field == "" {
		c.Field = defaultEngagedField
	}

	return nil
}

// HTTPPresenceResolver asks a presence service whether an identity is
// engaged in its workload.
type HTTPPresenceResolver struct {
	urlTemplate string
	apiKey      string
	field       string
	client      *http.Client
	limiter     *rate.Limiter
	logger      logger.Logger
}

var _ fleet.PresenceResolver = (*HTTPPresenceResolver)(nil)

// NewHTTPPresenceResolver builds a resolver; client may be nil.
func NewHTTPPresenceResolver(cfg *HTTPPresenceConfig, client *http.Client, log logger.Logger) (*HTTPPresenceResolver, error) {
	if cfg == nil {
		return nil, errURLRequired
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if client == nil {
		timeout := cfg.Timeout.Std()
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}

		client = &http.Client{Timeout: timeout}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	r := &HTTPPresenceResolver{
		urlTemplate: cfg.URL,
		apiKey:      cfg.APIKey,
		field:       cfg.Field,
		client:      client,
		logger:      log,
	}

	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return r, nil
}

func (r *HTTPPresenceResolver) CheckPresence(ctx context.Context, identity string) (bool, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}

	endpoint := strings.ReplaceAll(r.urlTemplate, identityPlaceholder, url.PathEscape(identity))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create presence request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("presence request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return false, fmt.Errorf("%w: %d: %s", errPresenceStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Errorf("%w: %w", errPresenceMalformed, err)
	}

	raw, ok := decoded[r.field]
	if !ok {
		return false, fmt.Errorf("%w: missing field %q", errPresenceMalformed, r.field)
	}

	var engaged bool
	if err := json.Unmarshal(raw, &engaged); err != nil {
		return false, fmt.Errorf("%w: field %q: %w", errPresenceMalformed, r.field, err)
	}

	r.logger.Debug().Str("identity", identity).Bool("engaged", engaged).Msg("Presence checked")

	return engaged, nil
}
