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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPreviewMatchesCanonicalHash(t *testing.T) {
	invoiceDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	total := decimal.NewFromFloat(121.0)
	fields := chain.CanonicalFields{
		PreviousHash: models.GenesisHash,
		FullNumber:   "A-0001",
		InvoiceDate:  invoiceDate,
		Total:        total,
		IssuerTaxId:  "B123",
		ClientTaxId:  "X999",
	}
	preview := chain.Preview(
		models.GenesisHash,
		"A-0001",
		invoiceDate,
		total,
		"B123",
		"X999",
	)
	assert.Equal(t, fields.Hash(), preview)
}
