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

// ChainStateGet returns the chain tail pointer for a company. A company
// with no issued invoices yet gets the genesis state (position 0).
func (d *Database) ChainStateGet(
	companyId uuid.UUID,
	txn *Txn,
) (models.ChainState, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Commit() //nolint:errcheck
	}
	var tmpState models.ChainState
	result := txn.Metadata().
		Where("company_id = ?", companyId).
		First(&tmpState)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.ChainState{
				CompanyID:    companyId,
				LastHash:     models.GenesisHash,
				LastPosition: 0,
			}, nil
		}
		return tmpState, result.Error
	}
	return tmpState, nil
}

// ChainStateAdvance moves the company chain tail to the given hash and
// position. The caller owns the transaction; the tail must advance in the
// same commit as the invoice chain fields. The position check enforces that
// the tail only ever moves forward by exactly one.
func (d *Database) ChainStateAdvance(
	companyId uuid.UUID,
	hash string,
	position uint64,
	txn *Txn,
) error {
	if position == 1 {
		result := txn.Metadata().Create(&models.ChainState{
			CompanyID:    companyId,
			LastHash:     hash,
			LastPosition: position,
		})
		return result.Error
	}
	result := txn.Metadata().
		Model(&models.ChainState{}).
		Where("company_id = ?", companyId).
		Where("last_position = ?", position-1).
		Updates(map[string]any{
			"last_hash":     hash,
			"last_position": position,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChainStateConflict
	}
	return nil
}

// ErrChainStateConflict is returned when a tail advance does not find the
// expected predecessor position, meaning another issuance won the race
var ErrChainStateConflict = errors.New("chain state position conflict")
