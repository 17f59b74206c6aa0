// Copyright 2025 OpenFiscal Software
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

package chainvoice

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry  prometheus.Registerer
	logger        *slog.Logger
	dataDir       string
	masterKey     []byte
	masterKeyFile string
	tracing       bool
	tracingStdout bool
}

type ConfigOptionFunc func(*Config)

// NewConfig creates a new config with the specified options applied
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDataDir specifies the persistent data directory. An empty value (the
// default) selects in-memory storage, useful for testing
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a registry for metrics
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithMasterKey specifies the 32-byte vault master key directly
func WithMasterKey(masterKey []byte) ConfigOptionFunc {
	return func(c *Config) {
		c.masterKey = masterKey
	}
}

// WithMasterKeyFile specifies a file holding the vault master key. The file
// may be sops-encrypted
func WithMasterKeyFile(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.masterKeyFile = path
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s)
// endpoint using OTLP. This can be configured using the OTEL_EXPORTER_OTLP_*
// env vars documented in the README for
// [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires
// tracing to be enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
