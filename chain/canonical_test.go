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
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/openfiscal/chainvoice/chain"
	"github.com/openfiscal/chainvoice/database/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalStringGenesis(t *testing.T) {
	fields := chain.CanonicalFields{
		PreviousHash: models.GenesisHash,
		FullNumber:   "A-0001",
		InvoiceDate:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Total:        decimal.NewFromFloat(121.0),
		IssuerTaxId:  "B123",
		ClientTaxId:  "X999",
	}
	assert.Equal(
		t,
		"GENESIS|A-0001|2024-01-10|121.00|B123|X999",
		fields.String(),
	)
}

func TestCanonicalHash(t *testing.T) {
	fields := chain.CanonicalFields{
		PreviousHash: models.GenesisHash,
		FullNumber:   "A-0001",
		InvoiceDate:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Total:        decimal.NewFromFloat(121.0),
		IssuerTaxId:  "B123",
		ClientTaxId:  "X999",
	}
	sum := sha256.Sum256([]byte(fields.String()))
	expected := hex.EncodeToString(sum[:])
	got := fields.Hash()
	assert.Equal(t, expected, got)
	assert.Len(t, got, 64)
	assert.Equal(t, strings.ToLower(got), got)
}

func TestCanonicalTotalFixedPrecision(t *testing.T) {
	testDefs := []struct {
		total    decimal.Decimal
		expected string
	}{
		{decimal.NewFromFloat(0.1), "0.10"},
		{decimal.NewFromInt(100), "100.00"},
		{decimal.NewFromFloat(99.999), "100.00"},
		{decimal.NewFromFloat(1234.5), "1234.50"},
	}
	for _, testDef := range testDefs {
		fields := chain.CanonicalFields{
			PreviousHash: models.GenesisHash,
			FullNumber:   "A-0001",
			InvoiceDate:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			Total:        testDef.total,
			IssuerTaxId:  "B123",
			ClientTaxId:  "X999",
		}
		parts := strings.Split(fields.String(), "|")
		require.Len(t, parts, 6)
		assert.Equal(t, testDef.expected, parts[3])
	}
}

func TestCanonicalHashChaining(t *testing.T) {
	first := chain.CanonicalFields{
		PreviousHash: models.GenesisHash,
		FullNumber:   "A-0001",
		InvoiceDate:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Total:        decimal.NewFromFloat(121.0),
		IssuerTaxId:  "B123",
		ClientTaxId:  "X999",
	}
	second := chain.CanonicalFields{
		PreviousHash: first.Hash(),
		FullNumber:   "A-0002",
		InvoiceDate:  time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		Total:        decimal.NewFromFloat(50.0),
		IssuerTaxId:  "B123",
		ClientTaxId:  "X999",
	}
	// Any change to the first link must change the second
	tampered := first
	tampered.Total = decimal.NewFromFloat(121.01)
	relinked := second
	relinked.PreviousHash = tampered.Hash()
	assert.NotEqual(t, first.Hash(), tampered.Hash())
	assert.NotEqual(t, second.Hash(), relinked.Hash())
}
