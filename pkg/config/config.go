// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads runtime configuration from the environment.
//
// All settings live under the RELAY_ prefix. Values support ${VAR} and
// ${VAR:-default} expansion so the same configuration can be templated across
// environments. A .env / .env.local file in the working directory is loaded
// first when present.
package config

import (
	"fmt"
	"time"

	"github.com/kadirpekel/relay/pkg/delegation"
	"github.com/kadirpekel/relay/pkg/httpclient"
)

// Config is the resolved runtime configuration.
type Config struct {
	// ExecutorURL is the base URL of the remote executor agent.
	ExecutorURL string

	// BearerToken, when set, authenticates outbound delegation requests.
	BearerToken string

	// Timeout bounds one whole delegation call.
	Timeout time.Duration

	// Streaming selects streaming dispatch with aggregation.
	Streaming bool

	// ListenAddr is the host server's bind address.
	ListenAddr string

	// JWKSURL enables bearer auth on the host server when set. Tokens are
	// verified against this JWKS endpoint.
	JWKSURL string

	// JWTIssuer and JWTAudience, when set, are enforced during token
	// validation.
	JWTIssuer   string
	JWTAudience string

	// TLSCACert is a path to a custom CA bundle for the executor
	// connection.
	TLSCACert string

	// TLSInsecureSkipVerify disables certificate verification. Dev only.
	TLSInsecureSkipVerify bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from .env files and the process environment.
func Load() (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	timeout, err := getDuration("RELAY_TIMEOUT", delegation.DefaultTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ExecutorURL:           getString("RELAY_EXECUTOR_URL", ""),
		BearerToken:           getString("RELAY_BEARER_TOKEN", ""),
		Timeout:               timeout,
		Streaming:             getBool("RELAY_STREAMING", false),
		ListenAddr:            getString("RELAY_LISTEN", ":8080"),
		JWKSURL:               getString("RELAY_JWKS_URL", ""),
		JWTIssuer:             getString("RELAY_JWT_ISSUER", ""),
		JWTAudience:           getString("RELAY_JWT_AUDIENCE", ""),
		TLSCACert:             getString("RELAY_TLS_CA_CERT", ""),
		TLSInsecureSkipVerify: getBool("RELAY_TLS_INSECURE_SKIP_VERIFY", false),
		LogLevel:              getString("RELAY_LOG_LEVEL", "info"),
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.ExecutorURL == "" {
		return fmt.Errorf("RELAY_EXECUTOR_URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("RELAY_TIMEOUT must be positive")
	}
	return nil
}

// Delegation builds the delegation client configuration.
func (c *Config) Delegation() delegation.Config {
	return delegation.Config{
		BaseURL: c.ExecutorURL,
		Timeout: c.Timeout,
		Token:   c.BearerToken,
		TLS:     c.TLS(),
	}
}

// TLS builds the outbound TLS configuration, or nil when defaults suffice.
func (c *Config) TLS() *httpclient.TLSConfig {
	if c.TLSCACert == "" && !c.TLSInsecureSkipVerify {
		return nil
	}
	return &httpclient.TLSConfig{
		CACertificate:      c.TLSCACert,
		InsecureSkipVerify: c.TLSInsecureSkipVerify,
	}
}
