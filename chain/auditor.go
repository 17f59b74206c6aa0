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
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/database"
	"github.com/openfiscal/chainvoice/database/models"
	"github.com/openfiscal/chainvoice/event"
)

// AuditRange restricts a verification run to a chain position interval
type AuditRange struct {
	From uint64
	To   uint64
}

// AuditEntry is the verification result for one chain position
type AuditEntry struct {
	Position     uint64
	ExpectedHash string
	StoredHash   string
	Valid        bool
}

// AuditReport is the outcome of a chain verification run. It is a read-only
// diagnostic: a broken chain is reported, never repaired. A mismatch at
// position k leaves every later entry individually reported but untrusted
// until investigated.
type AuditReport struct {
	CompanyId   uuid.UUID
	Entries     []AuditEntry
	BrokenLinks []uint64
	FirstHash   string
	LastHash    string
	ValidChain  bool
}

// Auditor independently recomputes committed chains and reports integrity
// breaks.
type Auditor struct {
	db       *database.Database
	eventBus *event.EventBus
	logger   *slog.Logger
}

func NewAuditor(
	db *database.Database,
	eventBus *event.EventBus,
	logger *slog.Logger,
) *Auditor {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Auditor{
		db:       db,
		eventBus: eventBus,
		logger:   logger.With("component", "auditor"),
	}
}

// Verify recomputes the company chain over the given range (nil for the
// full chain), feeding each computed hash forward as the next record's
// previous hash. The stored hash of the prior record is deliberately not
// trusted as input; the point is to detect drift.
func (a *Auditor) Verify(
	companyId uuid.UUID,
	auditRange *AuditRange,
) (AuditReport, error) {
	report := AuditReport{
		CompanyId:  companyId,
		ValidChain: true,
	}
	var fromPosition, toPosition uint64
	if auditRange != nil {
		fromPosition = auditRange.From
		toPosition = auditRange.To
	}

	txn := a.db.Transaction(false)
	defer txn.Commit() //nolint:errcheck

	company, err := a.db.CompanyByID(companyId, txn)
	if err != nil {
		return report, err
	}

	// Seed the previous hash. A full audit starts from genesis; a range
	// audit trusts the stored hash just before the range.
	previousHash := models.GenesisHash
	if fromPosition > 1 {
		anchor, err := a.db.InvoiceAtPosition(companyId, fromPosition-1, txn)
		if err != nil {
			return report, fmt.Errorf(
				"failed to read range anchor at position %d: %w",
				fromPosition-1,
				err,
			)
		}
		previousHash = anchor.ChainHash
	}

	invoices, err := a.db.InvoicesIssued(companyId, fromPosition, toPosition, txn)
	if err != nil {
		return report, err
	}

	expectedPosition := fromPosition
	if expectedPosition == 0 {
		expectedPosition = 1
	}
	// Client tax IDs are looked up once per client
	clientTaxIds := make(map[uuid.UUID]string)
	for _, invoice := range invoices {
		clientTaxId, ok := clientTaxIds[invoice.ClientID]
		if !ok {
			client, err := a.db.ClientByID(invoice.ClientID, txn)
			if err != nil {
				return report, err
			}
			clientTaxId = client.TaxID
			clientTaxIds[invoice.ClientID] = clientTaxId
		}
		canonical := CanonicalFields{
			PreviousHash: previousHash,
			FullNumber:   invoice.FullNumber,
			InvoiceDate:  invoice.InvoiceDate,
			Total:        invoice.Total,
			IssuerTaxId:  company.TaxID,
			ClientTaxId:  clientTaxId,
		}
		expectedHash := canonical.Hash()
		// A position gap is an integrity break in its own right
		valid := expectedHash == invoice.ChainHash &&
			invoice.ChainPosition == expectedPosition
		report.Entries = append(report.Entries, AuditEntry{
			Position:     invoice.ChainPosition,
			ExpectedHash: expectedHash,
			StoredHash:   invoice.ChainHash,
			Valid:        valid,
		})
		if !valid {
			report.ValidChain = false
			report.BrokenLinks = append(
				report.BrokenLinks,
				invoice.ChainPosition,
			)
		}
		if len(report.Entries) == 1 {
			report.FirstHash = expectedHash
		}
		report.LastHash = expectedHash
		// Feed the recomputed hash forward, not the stored one
		previousHash = expectedHash
		expectedPosition = invoice.ChainPosition + 1
	}

	if !report.ValidChain {
		a.logger.Error(
			"chain integrity break detected",
			"company_id", companyId.String(),
			"broken_links", report.BrokenLinks,
		)
		if a.eventBus != nil {
			var firstPos, lastPos uint64
			if len(report.Entries) > 0 {
				firstPos = report.Entries[0].Position
				lastPos = report.Entries[len(report.Entries)-1].Position
			}
			a.eventBus.Publish(
				event.ChainIntegrityEventType,
				event.NewEvent(
					event.ChainIntegrityEventType,
					event.ChainIntegrityEvent{
						CompanyId:     companyId,
						BrokenLinks:   report.BrokenLinks,
						FirstPosition: firstPos,
						LastPosition:  lastPos,
					},
				),
			)
		}
	}
	return report, nil
}
