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

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/database/models"
	"gorm.io/gorm"
)

// ErrCertificateNotFound is returned when no certificate version matches
var ErrCertificateNotFound = errors.New("certificate version not found")

// CertificateActive returns the active certificate version row for a company
func (d *Database) CertificateActive(
	companyId uuid.UUID,
	txn *Txn,
) (models.CertificateVersion, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var tmpVersion models.CertificateVersion
	result := txn.Metadata().
		Where("company_id = ?", companyId).
		Where("is_active = ?", true).
		First(&tmpVersion)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tmpVersion, ErrCertificateNotFound
		}
		return tmpVersion, result.Error
	}
	return tmpVersion, nil
}

// CertificateHistory returns all certificate version rows for a company in
// ascending version order. Metadata only, the secret blobs are not touched.
func (d *Database) CertificateHistory(
	companyId uuid.UUID,
	txn *Txn,
) ([]models.CertificateVersion, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var tmpVersions []models.CertificateVersion
	result := txn.Metadata().
		Where("company_id = ?", companyId).
		Order("version ASC").
		Find(&tmpVersions)
	if result.Error != nil {
		return nil, result.Error
	}
	return tmpVersions, nil
}

// CertificateNextVersion returns the next unused version number for a company
func (d *Database) CertificateNextVersion(
	companyId uuid.UUID,
	txn *Txn,
) (uint, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var tmpVersion models.CertificateVersion
	result := txn.Metadata().
		Where("company_id = ?", companyId).
		Order("version DESC").
		First(&tmpVersion)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, result.Error
	}
	return tmpVersion.Version + 1, nil
}

// CertificateInsert writes a new certificate version row along with its
// encrypted secret blobs and atomically flips the active flag to the new
// version. The caller owns the transaction.
func (d *Database) CertificateInsert(
	version *models.CertificateVersion,
	blobs map[string][]byte,
	txn *Txn,
) error {
	// Deactivate any currently active version
	result := txn.Metadata().
		Model(&models.CertificateVersion{}).
		Where("company_id = ?", version.CompanyID).
		Where("is_active = ?", true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	version.IsActive = true
	if result := txn.Metadata().Create(version); result.Error != nil {
		return result.Error
	}
	// Encrypted secret material goes to the blob store
	for field, blob := range blobs {
		key := CertificateBlobKey(version.CompanyID, version.Version, field)
		if err := txn.Blob().Set(key, blob); err != nil {
			return err
		}
	}
	return nil
}

// CertificateBlob returns one encrypted secret blob for a certificate version
func (d *Database) CertificateBlob(
	companyId uuid.UUID,
	version uint,
	field string,
	txn *Txn,
) ([]byte, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	key := CertificateBlobKey(companyId, version, field)
	item, err := txn.Blob().Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}
