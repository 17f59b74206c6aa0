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
	"time"

	"github.com/shopspring/decimal"
)

// Preview computes the hash an invoice would receive if issued against the
// given previous hash. It is a display convenience only: the committed hash
// is always recomputed server-side during issuance, and a caller-submitted
// preview is never accepted as authoritative.
func Preview(
	previousHash string,
	fullNumber string,
	invoiceDate time.Time,
	total decimal.Decimal,
	issuerTaxId string,
	clientTaxId string,
) string {
	return CanonicalFields{
		PreviousHash: previousHash,
		FullNumber:   fullNumber,
		InvoiceDate:  invoiceDate,
		Total:        total,
		IssuerTaxId:  issuerTaxId,
		ClientTaxId:  clientTaxId,
	}.Hash()
}
