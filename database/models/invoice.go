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

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "draft"
	InvoiceStatusApproved InvoiceStatus = "approved"
	InvoiceStatusIssued   InvoiceStatus = "issued"
	InvoiceStatusRejected InvoiceStatus = "rejected"
)

// Valid returns true if the InvoiceStatus is a known status value
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft,
		InvoiceStatusApproved,
		InvoiceStatusIssued,
		InvoiceStatusRejected:
		return true
	default:
		return false
	}
}

// Issuable returns true if an invoice in this status may enter the chain
func (s InvoiceStatus) Issuable() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusApproved
}

// Invoice is a commercial invoice record. Once Status transitions to issued,
// every field except Signature is immutable; ChainHash and ChainPosition are
// written exactly once by the chain issuer.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:text;primaryKey"`
	CompanyID     uuid.UUID       `gorm:"type:text;not null;index;uniqueIndex:idx_invoice_number;index:idx_invoice_chain_position"`
	ClientID      uuid.UUID       `gorm:"type:text;not null;index"`
	Series        string          `gorm:"not null;uniqueIndex:idx_invoice_number"`
	Number        uint64          `gorm:"not null;uniqueIndex:idx_invoice_number"`
	FullNumber    string          `gorm:"not null"`
	InvoiceDate   time.Time       `gorm:"not null"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(14,2)"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(14,2)"`
	Total         decimal.Decimal `gorm:"type:decimal(14,2)"`
	Currency      string          `gorm:"size:3;not null"`
	Status        InvoiceStatus   `gorm:"size:16;not null;index"`
	ChainHash     string          `gorm:"size:64"`
	ChainPosition uint64          `gorm:"index:idx_invoice_chain_position"`
	IssuedAt      *time.Time
	Signature     []byte
	Lines         []InvoiceLine `gorm:"foreignKey:InvoiceID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Invoice) TableName() string {
	return "invoice"
}

// InvoiceLine is a single line item belonging to an invoice
type InvoiceLine struct {
	ID          uint            `gorm:"primaryKey"`
	InvoiceID   uuid.UUID       `gorm:"type:text;not null;index"`
	Description string          `gorm:"not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(14,4)"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,4)"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(6,2)"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(14,2)"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(14,2)"`
	Total       decimal.Decimal `gorm:"type:decimal(14,2)"`
}

func (InvoiceLine) TableName() string {
	return "invoice_line"
}
