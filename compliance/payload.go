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

// Package compliance renders the externally verifiable payload for a
// committed invoice. It is pure and stateless: it consumes only fields that
// the chain issuer has already committed, and the set of embedded fields is
// coupled to the issuer's canonical string to preserve end-to-end
// verifiability.
package compliance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openfiscal/chainvoice/chain"
	"github.com/openfiscal/chainvoice/database/models"
)

// payloadSeparator joins the QR text payload fields
const payloadSeparator = "|"

// payloadDateLayout matches the canonical string date format
const payloadDateLayout = "2006-01-02"

// Document is the structured verification document for a committed invoice
type Document struct {
	Series        string    `json:"series"`
	Number        uint64    `json:"number"`
	FullNumber    string    `json:"full_number"`
	InvoiceDate   string    `json:"invoice_date"`
	Total         string    `json:"total"`
	Currency      string    `json:"currency"`
	ChainHash     string    `json:"chain_hash"`
	ChainPosition uint64    `json:"chain_position"`
	IssuedAt      time.Time `json:"issued_at"`
}

// QRText renders the scannable verification text for a committed invoice:
//
//	full_number|YYYY-MM-DD|total(2dp)|chain_hash|chain_position
func QRText(invoice models.Invoice) (string, error) {
	if err := checkCommitted(invoice); err != nil {
		return "", err
	}
	return strings.Join(
		[]string{
			invoice.FullNumber,
			invoice.InvoiceDate.Format(payloadDateLayout),
			invoice.Total.StringFixed(2),
			invoice.ChainHash,
			fmt.Sprintf("%d", invoice.ChainPosition),
		},
		payloadSeparator,
	), nil
}

// Render produces the structured verification document for a committed
// invoice
func Render(invoice models.Invoice) (Document, error) {
	if err := checkCommitted(invoice); err != nil {
		return Document{}, err
	}
	return Document{
		Series:        invoice.Series,
		Number:        invoice.Number,
		FullNumber:    invoice.FullNumber,
		InvoiceDate:   invoice.InvoiceDate.Format(payloadDateLayout),
		Total:         invoice.Total.StringFixed(2),
		Currency:      invoice.Currency,
		ChainHash:     invoice.ChainHash,
		ChainPosition: invoice.ChainPosition,
		IssuedAt:      derefTime(invoice.IssuedAt),
	}, nil
}

// RenderJSON produces the structured verification document as JSON
func RenderJSON(invoice models.Invoice) ([]byte, error) {
	doc, err := Render(invoice)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// checkCommitted rejects invoices that have not been committed to a chain
func checkCommitted(invoice models.Invoice) error {
	if invoice.Status != models.InvoiceStatusIssued ||
		invoice.ChainHash == "" ||
		invoice.ChainPosition == 0 {
		return chain.ErrNotCommitted
	}
	return nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
