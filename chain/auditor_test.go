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

package chain_test

import (
	"testing"
	"time"

	"github.com/openfiscal/chainvoice/chain"
	"github.com/openfiscal/chainvoice/database/models"
	"github.com/openfiscal/chainvoice/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// issueChain issues the given number of invoices for the fixture company
// and returns their issue results in chain order
func issueChain(
	t *testing.T,
	f *testFixture,
	count int,
) []chain.IssueResult {
	t.Helper()
	issuer := f.newIssuer(nil)
	results := make([]chain.IssueResult, 0, count)
	for i := range count {
		invoice := f.newDraftInvoice(t, uint64(i+1), 100.0+float64(i))
		result, err := issuer.Issue(invoice.ID)
		require.NoError(t, err)
		results = append(results, result)
	}
	return results
}

func TestAuditIntactChain(t *testing.T) {
	f := newTestFixture(t)
	results := issueChain(t, f, 3)
	auditor := chain.NewAuditor(f.db, nil, nil)

	report, err := auditor.Verify(f.company.ID, nil)
	require.NoError(t, err)
	assert.True(t, report.ValidChain)
	assert.Empty(t, report.BrokenLinks)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, results[0].Hash, report.FirstHash)
	assert.Equal(t, results[2].Hash, report.LastHash)
	for i, entry := range report.Entries {
		assert.True(t, entry.Valid)
		assert.Equal(t, uint64(i+1), entry.Position)
		assert.Equal(t, results[i].Hash, entry.StoredHash)
	}
}

func TestAuditEmptyChain(t *testing.T) {
	f := newTestFixture(t)
	auditor := chain.NewAuditor(f.db, nil, nil)

	report, err := auditor.Verify(f.company.ID, nil)
	require.NoError(t, err)
	assert.True(t, report.ValidChain)
	assert.Empty(t, report.Entries)
}

func TestAuditDetectsTampering(t *testing.T) {
	f := newTestFixture(t)
	issueChain(t, f, 3)
	auditor := chain.NewAuditor(f.db, nil, nil)

	// Tamper with the committed total of the second invoice
	result := f.db.Metadata().
		Model(&models.Invoice{}).
		Where("company_id = ?", f.company.ID).
		Where("chain_position = ?", 2).
		Update("total", "999.99")
	require.NoError(t, result.Error)
	require.Equal(t, int64(1), result.RowsAffected)

	report, err := auditor.Verify(f.company.ID, nil)
	require.NoError(t, err)
	assert.False(t, report.ValidChain)
	// The recomputed hash diverges at the tampered record and every
	// subsequent link inherits the divergence
	assert.Equal(t, []uint64{2, 3}, report.BrokenLinks)
	assert.True(t, report.Entries[0].Valid)
	assert.False(t, report.Entries[1].Valid)
	assert.False(t, report.Entries[2].Valid)
}

func TestAuditPublishesIntegrityEvent(t *testing.T) {
	f := newTestFixture(t)
	issueChain(t, f, 2)
	eventBus := event.NewEventBus(nil)
	auditor := chain.NewAuditor(f.db, eventBus, nil)
	_, subCh := eventBus.Subscribe(event.ChainIntegrityEventType)

	result := f.db.Metadata().
		Model(&models.Invoice{}).
		Where("company_id = ?", f.company.ID).
		Where("chain_position = ?", 1).
		Update("total", "0.01")
	require.NoError(t, result.Error)

	report, err := auditor.Verify(f.company.ID, nil)
	require.NoError(t, err)
	require.False(t, report.ValidChain)

	select {
	case evt := <-subCh:
		integrityEvt, ok := evt.Data.(event.ChainIntegrityEvent)
		require.True(t, ok)
		assert.Equal(t, f.company.ID, integrityEvt.CompanyId)
		assert.Equal(t, report.BrokenLinks, integrityEvt.BrokenLinks)
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for integrity event")
	}
}

func TestAuditRangeAnchorsOnStoredHash(t *testing.T) {
	f := newTestFixture(t)
	results := issueChain(t, f, 4)
	auditor := chain.NewAuditor(f.db, nil, nil)

	report, err := auditor.Verify(f.company.ID, &chain.AuditRange{
		From: 2,
		To:   3,
	})
	require.NoError(t, err)
	assert.True(t, report.ValidChain)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, uint64(2), report.Entries[0].Position)
	assert.Equal(t, uint64(3), report.Entries[1].Position)
	assert.Equal(t, results[1].Hash, report.FirstHash)
	assert.Equal(t, results[2].Hash, report.LastHash)
}

func TestAuditDetectsPositionGap(t *testing.T) {
	f := newTestFixture(t)
	issueChain(t, f, 3)
	auditor := chain.NewAuditor(f.db, nil, nil)

	// Simulate a missing record by un-issuing the middle invoice
	result := f.db.Metadata().
		Model(&models.Invoice{}).
		Where("company_id = ?", f.company.ID).
		Where("chain_position = ?", 2).
		Update("status", models.InvoiceStatusDraft)
	require.NoError(t, result.Error)

	report, err := auditor.Verify(f.company.ID, nil)
	require.NoError(t, err)
	assert.False(t, report.ValidChain)
	assert.Contains(t, report.BrokenLinks, uint64(3))
}
