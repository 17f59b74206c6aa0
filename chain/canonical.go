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

// Package chain implements the per-company invoice hash chain: issuance of
// hash-linked invoice records under strict total ordering, and independent
// verification of committed chains.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// canonicalSeparator joins canonical string fields. The field order and
// formatting below are a fixed external contract: previously issued chains
// are re-verified by third parties from these exact bytes, so any change
// breaks verifiability of existing data.
const canonicalSeparator = "|"

// canonicalDateLayout formats invoice dates inside the canonical string
const canonicalDateLayout = "2006-01-02"

// CanonicalFields are the immutable invoice fields that feed the chain hash
type CanonicalFields struct {
	PreviousHash string
	FullNumber   string
	InvoiceDate  time.Time
	Total        decimal.Decimal
	IssuerTaxId  string
	ClientTaxId  string
}

// String renders the canonical string:
//
//	previous_hash|full_number|YYYY-MM-DD|total(2dp)|issuer_tax_id|client_tax_id
func (c CanonicalFields) String() string {
	return strings.Join(
		[]string{
			c.PreviousHash,
			c.FullNumber,
			c.InvoiceDate.Format(canonicalDateLayout),
			c.Total.StringFixed(2),
			c.IssuerTaxId,
			c.ClientTaxId,
		},
		canonicalSeparator,
	)
}

// Hash returns the lowercase hex SHA-256 of the canonical string
func (c CanonicalFields) Hash() string {
	tmpHash := sha256.Sum256([]byte(c.String()))
	return hex.EncodeToString(tmpHash[:])
}
