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
)

// GenesisHash is the sentinel previous-hash value for the first invoice in a
// company chain.
const GenesisHash = "GENESIS"

// ChainState is the per-company chain tail pointer. LastPosition equals the
// count of issued invoices for the company; LastHash is the chain hash at
// that position. Updated only as a side effect of a successful issuance
// commit, inside the same transaction as the invoice row.
type ChainState struct {
	CompanyID    uuid.UUID `gorm:"type:text;primaryKey"`
	LastHash     string    `gorm:"size:64;not null"`
	LastPosition uint64    `gorm:"not null"`
	UpdatedAt    time.Time
}

func (ChainState) TableName() string {
	return "chain_state"
}
