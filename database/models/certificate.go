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

// CertificateVersion is the metadata row for one stored signing certificate
// version. Rows are append-only and never mutated after creation, except for
// the IsActive flag which is flipped atomically when a newer version
// supersedes this one. The encrypted secret material itself lives in the
// blob store, keyed by company and version; only non-secret metadata is
// stored here.
type CertificateVersion struct {
	ID            uint      `gorm:"primaryKey"`
	CompanyID     uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_cert_version"`
	Version       uint      `gorm:"not null;uniqueIndex:idx_cert_version"`
	IntegrityHash string    `gorm:"size:64;not null"`
	Subject       string
	Issuer        string
	SerialNumber  string
	NotBefore     time.Time
	NotAfter      time.Time
	CertLen       int
	KeyLen        int
	PassPresent   bool
	StoredAt      time.Time `gorm:"not null"`
	RotatedBy     string
	Notes         string
	IsActive      bool `gorm:"not null;index"`
}

func (CertificateVersion) TableName() string {
	return "certificate_version"
}
