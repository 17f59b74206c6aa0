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

package compliance_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/chain"
	"github.com/openfiscal/chainvoice/compliance"
	"github.com/openfiscal/chainvoice/database/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func committedInvoice() models.Invoice {
	issuedAt := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	return models.Invoice{
		ID:            uuid.New(),
		Series:        "A",
		Number:        1,
		FullNumber:    "A-0001",
		InvoiceDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Total:         decimal.NewFromFloat(121.0),
		Currency:      "EUR",
		Status:        models.InvoiceStatusIssued,
		ChainHash:     strings.Repeat("ab", 32),
		ChainPosition: 7,
		IssuedAt:      &issuedAt,
	}
}

func TestQRText(t *testing.T) {
	invoice := committedInvoice()
	payload, err := compliance.QRText(invoice)
	require.NoError(t, err)
	assert.Equal(
		t,
		"A-0001|2024-01-10|121.00|"+invoice.ChainHash+"|7",
		payload,
	)
}

func TestQRTextNotCommitted(t *testing.T) {
	testDefs := []struct {
		name   string
		mutate func(*models.Invoice)
	}{
		{
			name: "draft status",
			mutate: func(i *models.Invoice) {
				i.Status = models.InvoiceStatusDraft
			},
		},
		{
			name: "missing hash",
			mutate: func(i *models.Invoice) {
				i.ChainHash = ""
			},
		},
		{
			name: "missing position",
			mutate: func(i *models.Invoice) {
				i.ChainPosition = 0
			},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			invoice := committedInvoice()
			testDef.mutate(&invoice)
			_, err := compliance.QRText(invoice)
			assert.ErrorIs(t, err, chain.ErrNotCommitted)
		})
	}
}

func TestRenderDocument(t *testing.T) {
	invoice := committedInvoice()
	doc, err := compliance.Render(invoice)
	require.NoError(t, err)
	assert.Equal(t, "A", doc.Series)
	assert.Equal(t, uint64(1), doc.Number)
	assert.Equal(t, "A-0001", doc.FullNumber)
	assert.Equal(t, "2024-01-10", doc.InvoiceDate)
	assert.Equal(t, "121.00", doc.Total)
	assert.Equal(t, "EUR", doc.Currency)
	assert.Equal(t, invoice.ChainHash, doc.ChainHash)
	assert.Equal(t, uint64(7), doc.ChainPosition)
	assert.Equal(t, *invoice.IssuedAt, doc.IssuedAt)
}

func TestRenderJSON(t *testing.T) {
	invoice := committedInvoice()
	raw, err := compliance.RenderJSON(invoice)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "A-0001", decoded["full_number"])
	assert.Equal(t, "121.00", decoded["total"])
	assert.Equal(t, invoice.ChainHash, decoded["chain_hash"])
	assert.Equal(t, float64(7), decoded["chain_position"])
}

func TestRenderNotCommitted(t *testing.T) {
	invoice := committedInvoice()
	invoice.Status = models.InvoiceStatusApproved
	_, err := compliance.Render(invoice)
	assert.ErrorIs(t, err, chain.ErrNotCommitted)
}
