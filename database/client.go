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

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/database/models"
	"gorm.io/gorm"
)

var (
	ErrClientNotFound  = errors.New("client not found")
	ErrCompanyNotFound = errors.New("company not found")
	ErrSeriesNotFound  = errors.New("series not found")
)

// ClientByID returns the client with the given ID
func (d *Database) ClientByID(
	clientId uuid.UUID,
	txn *Txn,
) (models.Client, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var tmpClient models.Client
	result := txn.Metadata().
		Where("id = ?", clientId).
		First(&tmpClient)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tmpClient, ErrClientNotFound
		}
		return tmpClient, result.Error
	}
	return tmpClient, nil
}

// CompanyByID returns the company with the given ID
func (d *Database) CompanyByID(
	companyId uuid.UUID,
	txn *Txn,
) (models.Company, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var tmpCompany models.Company
	result := txn.Metadata().
		Where("id = ?", companyId).
		First(&tmpCompany)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tmpCompany, ErrCompanyNotFound
		}
		return tmpCompany, result.Error
	}
	return tmpCompany, nil
}

// SeriesByCode returns a company invoice series by its code
func (d *Database) SeriesByCode(
	companyId uuid.UUID,
	code string,
	txn *Txn,
) (models.Series, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var tmpSeries models.Series
	result := txn.Metadata().
		Where("company_id = ?", companyId).
		Where("code = ?", code).
		First(&tmpSeries)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tmpSeries, ErrSeriesNotFound
		}
		return tmpSeries, result.Error
	}
	return tmpSeries, nil
}
