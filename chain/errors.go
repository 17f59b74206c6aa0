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

package chain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConcurrencyConflict is returned when another issuance for the same
	// company won the race for the next chain position. The caller retries;
	// a position is never silently skipped.
	ErrConcurrencyConflict = errors.New(
		"concurrent issuance in flight for company",
	)
	// ErrNotCommitted is returned when an operation requires an invoice
	// that has already been committed to the chain
	ErrNotCommitted = errors.New("invoice is not committed to the chain")
)

// ValidationFailedError is returned when preflight validation blocks an
// issuance. It carries every failing check code so the caller can fix the
// invoice in a single pass. Nothing was mutated.
type ValidationFailedError struct {
	codes []string
}

func NewValidationFailedError(codes []string) ValidationFailedError {
	return ValidationFailedError{codes: codes}
}

// Codes returns the failing validation check codes in evaluation order
func (e ValidationFailedError) Codes() []string {
	return e.codes
}

func (e ValidationFailedError) Error() string {
	return fmt.Sprintf(
		"invoice failed preflight validation: %s",
		strings.Join(e.codes, ", "),
	)
}

// StorageFailureError wraps a storage-layer failure during issuance. Nothing
// was committed, so the attempt is safe to retry.
type StorageFailureError struct {
	err error
}

func NewStorageFailureError(err error) StorageFailureError {
	return StorageFailureError{err: err}
}

func (e StorageFailureError) Error() string {
	return fmt.Sprintf("storage failure during issuance: %s", e.err)
}

func (e StorageFailureError) Unwrap() error {
	return e.err
}
