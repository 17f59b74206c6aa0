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

package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Blob key prefixes
const (
	blobKeyPrefixCertificate = "cert"
	blobKeyCommitTimestamp   = "metadata_commit_timestamp"
)

// Certificate blob fields
const (
	CertBlobFieldCert = "cert"
	CertBlobFieldKey  = "key"
	CertBlobFieldPass = "pass"
)

// CertificateBlobKey returns the blob store key for one encrypted secret
// belonging to a certificate version
func CertificateBlobKey(
	companyId uuid.UUID,
	version uint,
	field string,
) []byte {
	return fmt.Appendf(
		nil,
		"%s:%s:%d:%s",
		blobKeyPrefixCertificate,
		companyId.String(),
		version,
		field,
	)
}

// openBlob opens the Badger blob store. Uses an in-memory store when dataDir
// is empty.
func openBlob(dataDir string, logger *slog.Logger) (*badger.DB, error) {
	var badgerOpts badger.Options
	if dataDir == "" {
		// No dataDir, use in-memory config
		badgerOpts = badger.DefaultOptions("").
			WithLogger(newBadgerLogger(logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			// Create data directory
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		blobDir := filepath.Join(
			dataDir,
			"blob",
		)
		badgerOpts = badger.DefaultOptions(blobDir).
			WithLogger(newBadgerLogger(logger)).
			WithLoggingLevel(badger.WARNING)
	}
	blobDb, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	return blobDb, nil
}

// badgerLogger forwards badger's log output to slog
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &badgerLogger{
		logger: logger.With("component", "blobstore"),
	}
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.logger.Info(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(fmt.Sprintf(format, args...))
}
