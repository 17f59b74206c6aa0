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

package validation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/database"
	"github.com/openfiscal/chainvoice/database/models"
	"github.com/openfiscal/chainvoice/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatorFixture struct {
	db        *database.Database
	validator *validation.Validator
	company   models.Company
	client    models.Client
}

func newValidatorFixture(t *testing.T) *validatorFixture {
	t.Helper()
	db, err := database.New(&database.Config{
		DataDir: "",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	f := &validatorFixture{
		db:        db,
		validator: validation.NewValidator(db, nil),
		company: models.Company{
			ID:    uuid.New(),
			Name:  "Acme SL",
			TaxID: "B123",
		},
	}
	f.client = models.Client{
		ID:        uuid.New(),
		CompanyID: f.company.ID,
		Name:      "Cliente X",
		TaxID:     "X999",
	}
	require.NoError(t, db.Metadata().Create(&f.company).Error)
	require.NoError(t, db.Metadata().Create(&f.client).Error)
	require.NoError(t, db.Metadata().Create(&models.Series{
		CompanyID:    f.company.ID,
		Code:         "A",
		ChainEnabled: true,
	}).Error)
	require.NoError(t, db.Metadata().Create(&models.Series{
		CompanyID:    f.company.ID,
		Code:         "P", // proforma series, not chained
		ChainEnabled: false,
	}).Error)
	return f
}

// goodInvoice returns an invoice that passes every preflight check
func (f *validatorFixture) goodInvoice() models.Invoice {
	return models.Invoice{
		ID:          uuid.New(),
		CompanyID:   f.company.ID,
		ClientID:    f.client.ID,
		Series:      "A",
		Number:      1,
		FullNumber:  "A-0001",
		InvoiceDate: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		Subtotal:    decimal.NewFromFloat(100.0),
		TaxAmount:   decimal.NewFromFloat(21.0),
		Total:       decimal.NewFromFloat(121.0),
		Currency:    "EUR",
		Status:      models.InvoiceStatusDraft,
	}
}

func TestValidateOK(t *testing.T) {
	f := newValidatorFixture(t)
	result, err := f.validator.Validate(f.goodInvoice(), nil)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.Errors)
}

func TestValidateApprovedOK(t *testing.T) {
	f := newValidatorFixture(t)
	invoice := f.goodInvoice()
	invoice.Status = models.InvoiceStatusApproved
	result, err := f.validator.Validate(invoice, nil)
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestValidateSingleFailures(t *testing.T) {
	f := newValidatorFixture(t)
	testDefs := []struct {
		name         string
		mutate       func(*models.Invoice)
		expectedCode string
	}{
		{
			name: "already issued",
			mutate: func(i *models.Invoice) {
				i.Status = models.InvoiceStatusIssued
			},
			expectedCode: validation.CodeStatusNotIssuable,
		},
		{
			name: "rejected",
			mutate: func(i *models.Invoice) {
				i.Status = models.InvoiceStatusRejected
			},
			expectedCode: validation.CodeStatusNotIssuable,
		},
		{
			name: "series not chain enabled",
			mutate: func(i *models.Invoice) {
				i.Series = "P"
			},
			expectedCode: validation.CodeSeriesNotChained,
		},
		{
			name: "unknown series",
			mutate: func(i *models.Invoice) {
				i.Series = "Z"
			},
			expectedCode: validation.CodeSeriesNotChained,
		},
		{
			name: "header totals inconsistent",
			mutate: func(i *models.Invoice) {
				i.Total = decimal.NewFromFloat(120.0)
			},
			expectedCode: validation.CodeTotalsMismatch,
		},
		{
			name: "unknown client",
			mutate: func(i *models.Invoice) {
				i.ClientID = uuid.New()
			},
			expectedCode: validation.CodeClientNotFound,
		},
		{
			name: "future dated",
			mutate: func(i *models.Invoice) {
				i.InvoiceDate = time.Now().Add(72 * time.Hour)
			},
			expectedCode: validation.CodeFutureDated,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			invoice := f.goodInvoice()
			testDef.mutate(&invoice)
			result, err := f.validator.Validate(invoice, nil)
			require.NoError(t, err)
			assert.False(t, result.OK)
			assert.Equal(t, []string{testDef.expectedCode}, result.Errors)
		})
	}
}

func TestValidateLinesSumMismatch(t *testing.T) {
	f := newValidatorFixture(t)
	invoice := f.goodInvoice()
	// Line items sum to 100.00 but the header subtotal says 99.00
	invoice.Subtotal = decimal.NewFromFloat(99.0)
	invoice.TaxAmount = decimal.Zero
	invoice.Total = decimal.NewFromFloat(99.0)
	invoice.Lines = []models.InvoiceLine{
		{
			Description: "Item 1",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromFloat(60.0),
			Subtotal:    decimal.NewFromFloat(60.0),
			TaxAmount:   decimal.Zero,
			Total:       decimal.NewFromFloat(60.0),
		},
		{
			Description: "Item 2",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromFloat(40.0),
			Subtotal:    decimal.NewFromFloat(40.0),
			TaxAmount:   decimal.Zero,
			Total:       decimal.NewFromFloat(40.0),
		},
	}
	result, err := f.validator.Validate(invoice, nil)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, []string{validation.CodeTotalsMismatch}, result.Errors)
}

func TestValidateTotalsWithinEpsilon(t *testing.T) {
	f := newValidatorFixture(t)
	invoice := f.goodInvoice()
	// One minor unit of rounding drift is tolerated
	invoice.Total = decimal.NewFromFloat(121.01)
	result, err := f.validator.Validate(invoice, nil)
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestValidateClientMissingTaxId(t *testing.T) {
	f := newValidatorFixture(t)
	client := models.Client{
		ID:        uuid.New(),
		CompanyID: f.company.ID,
		Name:      "Cliente sin NIF",
	}
	require.NoError(t, f.db.Metadata().Create(&client).Error)
	invoice := f.goodInvoice()
	invoice.ClientID = client.ID
	result, err := f.validator.Validate(invoice, nil)
	require.NoError(t, err)
	assert.Equal(
		t,
		[]string{validation.CodeClientMissingTaxId},
		result.Errors,
	)
}

func TestValidateSameDayNotFutureDated(t *testing.T) {
	f := newValidatorFixture(t)
	invoice := f.goodInvoice()
	invoice.InvoiceDate = time.Now().Add(1 * time.Hour)
	result, err := f.validator.Validate(invoice, nil)
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestValidateAllCodesTogether(t *testing.T) {
	f := newValidatorFixture(t)
	invoice := f.goodInvoice()
	invoice.Status = models.InvoiceStatusIssued
	invoice.Series = "P"
	invoice.Total = decimal.NewFromFloat(50.0)
	invoice.ClientID = uuid.New()
	invoice.InvoiceDate = time.Now().Add(72 * time.Hour)
	result, err := f.validator.Validate(invoice, nil)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, []string{
		validation.CodeStatusNotIssuable,
		validation.CodeSeriesNotChained,
		validation.CodeTotalsMismatch,
		validation.CodeClientNotFound,
		validation.CodeFutureDated,
	}, result.Errors)
}
