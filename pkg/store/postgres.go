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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/fleetkeeper/pkg/logger"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

const (
	defaultDocumentName = "default"

	createStateTableSQL = `
CREATE TABLE IF NOT EXISTS fleet_state (
	name       TEXT PRIMARY KEY,
	document   JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	selectStateSQL = `SELECT document FROM fleet_state WHERE name = $1`

	// top-level keys written by other tools survive the merge
	upsertStateSQL = `
INSERT INTO fleet_state (name, document, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (name) DO UPDATE
SET document = fleet_state.document || EXCLUDED.document,
    updated_at = EXCLUDED.updated_at`
)

var errPostgresTLSFilesRequired = errors.New("postgres tls: cert_file, key_file, and ca_file are required")

// PostgresConfig describes the Postgres connection the document lives in.
type PostgresConfig struct {
	Host              string            `json:"host"`
	Port              int               `json:"port,omitempty"`
	Database          string            `json:"database"`
	Username          string            `json:"username,omitempty"`
	Password          string            `json:"password,omitempty"`
	SSLMode           string            `json:"ssl_mode,omitempty"`
	ApplicationName   string            `json:"application_name,omitempty"`
	MaxConnections    int32             `json:"max_connections,omitempty"`
	MinConnections    int32             `json:"min_connections,omitempty"`
	MaxConnLifetime   models.Duration   `json:"max_conn_lifetime,omitempty"`
	HealthCheckPeriod models.Duration   `json:"health_check_period,omitempty"`
	StatementTimeout  models.Duration   `json:"statement_timeout,omitempty"`
	TLS               *models.TLSConfig `json:"tls,omitempty"`
	// DocumentName selects the row, so several fleets can share a table.
	DocumentName string `json:"document_name,omitempty"`
}

// NewPostgresPool dials the configured database and returns a pgx pool.
func NewPostgresPool(ctx context.Context, cfg *PostgresConfig, log logger.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := buildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to initialize pool: %w", err)
	}

	if log != nil {
		log.Info().
			Str("host", cfg.Host).
			Int32("max_conns", poolConfig.MaxConns).
			Msg("Connected to Postgres")
	}

	return pool, nil
}

func buildPoolConfig(cfg *PostgresConfig) (*pgxpool.Config, error) {
	pg := *cfg
	if pg.Port == 0 {
		pg.Port = 5432
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", pg.Host, pg.Port),
		Path:   "/" + pg.Database,
	}

	if pg.Username != "" {
		if pg.Password != "" {
			connURL.User = url.UserPassword(pg.Username, pg.Password)
		} else {
			connURL.User = url.User(pg.Username)
		}
	}

	query := connURL.Query()

	sslMode := pg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	if pg.ApplicationName != "" {
		query.Set("application_name", pg.ApplicationName)
	}

	connURL.RawQuery = query.Encode()

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection string: %w", err)
	}

	if pg.MaxConnections > 0 {
		poolConfig.MaxConns = pg.MaxConnections
	}

	if pg.MinConnections > 0 {
		poolConfig.MinConns = pg.MinConnections
	}

	if pg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = pg.MaxConnLifetime.Std()
	}

	if pg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = pg.HealthCheckPeriod.Std()
	}

	if pg.StatementTimeout > 0 {
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
		}

		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(int64(pg.StatementTimeout.Std()/time.Millisecond), 10)
	}

	tlsConfig, err := buildPostgresTLSConfig(&pg)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		poolConfig.ConnConfig.TLSConfig = tlsConfig
	}

	return poolConfig, nil
}

func buildPostgresTLSConfig(cfg *PostgresConfig) (*tls.Config, error) {
	if cfg.TLS == nil {
		return nil, nil
	}

	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" || cfg.TLS.CAFile == "" {
		return nil, errPostgresTLSFilesRequired
	}

	clientCert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("postgres tls: failed to load client keypair: %w", err)
	}

	caBytes, err := os.ReadFile(cfg.TLS.CAFile)
	if err != nil {
		return nil, fmt.Errorf("postgres tls: failed to read CA file: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("postgres tls: unable to append CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
		ServerName:   cfg.Host,
	}, nil
}

// querier is the subset of *pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository keeps the document in one JSONB row.
type PostgresRepository struct {
	db   querier
	name string
}

func NewPostgresRepository(db querier, name string) *PostgresRepository {
	if name == "" {
		name = defaultDocumentName
	}

	return &PostgresRepository{db: db, name: name}
}

// EnsureSchema creates the state table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createStateTableSQL); err != nil {
		return fmt.Errorf("failed to create fleet_state table: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Load(ctx context.Context) (*models.FleetState, error) {
	var raw []byte

	err := r.db.QueryRow(ctx, selectStateSQL, r.name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return DecodeState(nil)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load fleet state %s: %w", r.name, err)
	}

	return DecodeState(raw)
}

func (r *PostgresRepository) Save(ctx context.Context, state *models.FleetState) error {
	doc, err := EncodeState(nil, state)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, upsertStateSQL, r.name, string(doc)); err != nil {
		return fmt.Errorf("failed to save fleet state %s: %w", r.name, err)
	}

	return nil
}
