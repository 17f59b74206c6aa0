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

// Company is the issuing legal entity. Each company owns an independent
// invoice hash chain and certificate history.
type Company struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	Name      string    `gorm:"not null"`
	TaxID     string    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Company) TableName() string {
	return "company"
}

// Client is a billable counterparty belonging to a company
type Client struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:text;not null;index"`
	Name      string    `gorm:"not null"`
	TaxID     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Client) TableName() string {
	return "client"
}

// Series is an invoice numbering series. Only series with ChainEnabled set
// may feed invoices into the company hash chain.
type Series struct {
	ID           uint      `gorm:"primaryKey"`
	CompanyID    uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_series_code"`
	Code         string    `gorm:"not null;uniqueIndex:idx_series_code"`
	ChainEnabled bool      `gorm:"not null"`
	CreatedAt    time.Time
}

func (Series) TableName() string {
	return "series"
}
