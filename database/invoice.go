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

package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/database/models"
	"gorm.io/gorm"
)

// ErrInvoiceNotFound is returned when an invoice lookup matches no record
var ErrInvoiceNotFound = errors.New("invoice not found")

// InvoiceByID returns the invoice with the given ID, including its lines
func (d *Database) InvoiceByID(
	invoiceId uuid.UUID,
	txn *Txn,
) (models.Invoice, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var tmpInvoice models.Invoice
	result := txn.Metadata().
		Preload("Lines").
		Where("id = ?", invoiceId).
		First(&tmpInvoice)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tmpInvoice, ErrInvoiceNotFound
		}
		return tmpInvoice, result.Error
	}
	return tmpInvoice, nil
}

// InvoiceCreate inserts a draft invoice with its lines
func (d *Database) InvoiceCreate(
	invoice *models.Invoice,
	txn *Txn,
) error {
	owned := false
	if txn == nil {
		txn = d.Transaction(true)
		owned = true
		defer txn.Rollback() //nolint:errcheck
	}
	if result := txn.Metadata().Create(invoice); result.Error != nil {
		return result.Error
	}
	if owned {
		return txn.Commit()
	}
	return nil
}

// InvoiceMarkIssued writes the chain fields onto an invoice and flips its
// status to issued. Must run inside a read-write transaction owned by the
// caller so the chain state advances atomically with it.
func (d *Database) InvoiceMarkIssued(
	invoiceId uuid.UUID,
	chainHash string,
	chainPosition uint64,
	issuedAt time.Time,
	txn *Txn,
) error {
	result := txn.Metadata().
		Model(&models.Invoice{}).
		Where("id = ?", invoiceId).
		Where("status IN ?", []models.InvoiceStatus{
			models.InvoiceStatusDraft,
			models.InvoiceStatusApproved,
		}).
		Updates(map[string]any{
			"chain_hash":     chainHash,
			"chain_position": chainPosition,
			"issued_at":      issuedAt,
			"status":         models.InvoiceStatusIssued,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// InvoiceSetSignature stores a detached signature on an issued invoice. The
// signature is the only mutable field after issuance.
func (d *Database) InvoiceSetSignature(
	invoiceId uuid.UUID,
	signature []byte,
	txn *Txn,
) error {
	owned := false
	if txn == nil {
		txn = d.Transaction(true)
		owned = true
		defer txn.Rollback() //nolint:errcheck
	}
	result := txn.Metadata().
		Model(&models.Invoice{}).
		Where("id = ?", invoiceId).
		Where("status = ?", models.InvoiceStatusIssued).
		Update("signature", signature)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvoiceNotFound
	}
	if owned {
		return txn.Commit()
	}
	return nil
}

// InvoicesIssued returns the issued invoices for a company in ascending
// chain position order, optionally restricted to a position range. Zero
// values for fromPosition/toPosition mean unbounded.
func (d *Database) InvoicesIssued(
	companyId uuid.UUID,
	fromPosition uint64,
	toPosition uint64,
	txn *Txn,
) ([]models.Invoice, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	query := txn.Metadata().
		Where("company_id = ?", companyId).
		Where("status = ?", models.InvoiceStatusIssued)
	if fromPosition > 0 {
		query = query.Where("chain_position >= ?", fromPosition)
	}
	if toPosition > 0 {
		query = query.Where("chain_position <= ?", toPosition)
	}
	var tmpInvoices []models.Invoice
	result := query.
		Order("chain_position ASC").
		Find(&tmpInvoices)
	if result.Error != nil {
		return nil, result.Error
	}
	return tmpInvoices, nil
}

// InvoiceAtPosition returns the issued invoice at the given chain position
func (d *Database) InvoiceAtPosition(
	companyId uuid.UUID,
	position uint64,
	txn *Txn,
) (models.Invoice, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var tmpInvoice models.Invoice
	result := txn.Metadata().
		Where("company_id = ?", companyId).
		Where("status = ?", models.InvoiceStatusIssued).
		Where("chain_position = ?", position).
		First(&tmpInvoice)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tmpInvoice, ErrInvoiceNotFound
		}
		return tmpInvoice, result.Error
	}
	return tmpInvoice, nil
}
