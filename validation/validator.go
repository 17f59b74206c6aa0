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

// Package validation implements the preflight gate that an invoice must pass
// before it may be linked into the company hash chain. Validation is
// read-only and fails closed: every failing check is reported together
// rather than stopping at the first.
package validation

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/openfiscal/chainvoice/database"
	"github.com/openfiscal/chainvoice/database/models"
	"github.com/shopspring/decimal"
)

// Validation check codes, one per preflight check
const (
	CodeStatusNotIssuable  = "status_not_issuable"
	CodeSeriesNotChained   = "series_not_chained"
	CodeTotalsMismatch     = "totals_mismatch"
	CodeClientNotFound     = "client_not_found"
	CodeClientMissingTaxId = "client_missing_tax_id"
	CodeFutureDated        = "future_dated"
)

// MonetaryEpsilon is the tolerance for monetary consistency checks: one
// currency minor unit
var MonetaryEpsilon = decimal.NewFromFloat(0.01)

// FutureDateTolerance is the allowed clock skew for invoice dates. Invoice
// dates carry calendar-day granularity, so a full day covers the
// same-day-across-timezones case.
const FutureDateTolerance = 24 * time.Hour

// Result is the outcome of one preflight run. Errors lists the code of
// every failing check in evaluation order; OK is true iff it is empty.
type Result struct {
	Errors []string
	OK     bool
}

// Validator is the stateless preflight gate. It only ever reads.
type Validator struct {
	db     *database.Database
	logger *slog.Logger
	now    func() time.Time
}

func NewValidator(db *database.Database, logger *slog.Logger) *Validator {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Validator{
		db:     db,
		logger: logger.With("component", "validation"),
		now:    time.Now,
	}
}

// Validate runs every preflight check against the invoice and returns the
// full list of failing codes. The txn may be nil for a standalone check or
// an open transaction when re-validating inside the issuance boundary.
func (v *Validator) Validate(
	invoice models.Invoice,
	txn *database.Txn,
) (Result, error) {
	var codes []string

	// Already-issued (or rejected) invoices cannot re-enter the chain
	if !invoice.Status.Issuable() {
		codes = append(codes, CodeStatusNotIssuable)
	}

	// The series must be enabled for chained issuance
	series, err := v.db.SeriesByCode(invoice.CompanyID, invoice.Series, txn)
	if err != nil {
		if !errors.Is(err, database.ErrSeriesNotFound) {
			return Result{}, err
		}
		codes = append(codes, CodeSeriesNotChained)
	} else if !series.ChainEnabled {
		codes = append(codes, CodeSeriesNotChained)
	}

	// Monetary consistency: subtotal + tax = total, and line sums match the
	// header, all within epsilon. One code covers both: the caller's fix is
	// the same either way
	headerSum := invoice.Subtotal.Add(invoice.TaxAmount)
	if headerSum.Sub(invoice.Total).Abs().GreaterThan(MonetaryEpsilon) ||
		!v.linesMatchHeader(invoice) {
		codes = append(codes, CodeTotalsMismatch)
	}

	// Client must exist and carry a tax identifier
	client, err := v.db.ClientByID(invoice.ClientID, txn)
	if err != nil {
		if !errors.Is(err, database.ErrClientNotFound) {
			return Result{}, err
		}
		codes = append(codes, CodeClientNotFound)
	} else if client.TaxID == "" {
		codes = append(codes, CodeClientMissingTaxId)
	}

	// Invoice date must not be in the future beyond clock skew tolerance
	if invoice.InvoiceDate.After(v.now().Add(FutureDateTolerance)) {
		codes = append(codes, CodeFutureDated)
	}

	if len(codes) > 0 {
		v.logger.Debug(
			"invoice failed preflight validation",
			"invoice_id", invoice.ID.String(),
			"codes", codes,
		)
	}
	return Result{
		OK:     len(codes) == 0,
		Errors: codes,
	}, nil
}

// linesMatchHeader compares the line item sums against the invoice header
// amounts. An invoice without lines is checked on its header only.
func (v *Validator) linesMatchHeader(invoice models.Invoice) bool {
	if len(invoice.Lines) == 0 {
		return true
	}
	var subtotalSum, taxSum, totalSum decimal.Decimal
	for _, line := range invoice.Lines {
		subtotalSum = subtotalSum.Add(line.Subtotal)
		taxSum = taxSum.Add(line.TaxAmount)
		totalSum = totalSum.Add(line.Total)
	}
	if subtotalSum.Sub(invoice.Subtotal).Abs().GreaterThan(MonetaryEpsilon) {
		return false
	}
	if taxSum.Sub(invoice.TaxAmount).Abs().GreaterThan(MonetaryEpsilon) {
		return false
	}
	if totalSum.Sub(invoice.Total).Abs().GreaterThan(MonetaryEpsilon) {
		return false
	}
	return true
}
