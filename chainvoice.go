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

// Package chainvoice wires together the invoice chain core: preflight
// validation, hash-chain issuance, certificate custody, chain auditing, and
// compliance payload rendering.
package chainvoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/chain"
	"github.com/openfiscal/chainvoice/compliance"
	"github.com/openfiscal/chainvoice/database"
	"github.com/openfiscal/chainvoice/event"
	"github.com/openfiscal/chainvoice/validation"
	"github.com/openfiscal/chainvoice/vault"
)

type Service struct {
	config        Config
	db            *database.Database
	eventBus      *event.EventBus
	validator     *validation.Validator
	issuer        *chain.Issuer
	auditor       *chain.Auditor
	vault         *vault.Vault
	shutdownFuncs []func(context.Context) error
}

// New creates and wires a Service from the given config. The vault is only
// configured when a master key is provided; without one, issuance still
// works but invoices are committed unsigned.
func New(cfg Config) (*Service, error) {
	s := &Service{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry),
	}
	s.eventBus.Logger = cfg.logger
	// Configure tracing
	if cfg.tracing {
		if err := s.setupTracing(); err != nil {
			return nil, err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:      cfg.dataDir,
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db
	// Resolve the vault master key
	masterKey := cfg.masterKey
	if masterKey == nil && cfg.masterKeyFile != "" {
		masterKey, err = vault.LoadMasterKeyFile(cfg.masterKeyFile)
		if err != nil {
			return nil, err
		}
	}
	var certVault *vault.Vault
	if masterKey != nil {
		certVault, err = vault.NewVault(vault.VaultConfig{
			DB:        db,
			MasterKey: masterKey,
			Logger:    cfg.logger,
		})
		if err != nil {
			return nil, err
		}
	}
	s.vault = certVault
	// Wire the chain core
	s.validator = validation.NewValidator(db, cfg.logger)
	issuerCfg := chain.IssuerConfig{
		DB:           db,
		Validator:    s.validator,
		EventBus:     s.eventBus,
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
	}
	if certVault != nil {
		issuerCfg.Signer = certVault
	}
	s.issuer = chain.NewIssuer(issuerCfg)
	s.auditor = chain.NewAuditor(db, s.eventBus, cfg.logger)
	return s, nil
}

// Issue commits the invoice to its company hash chain
func (s *Service) Issue(invoiceId uuid.UUID) (chain.IssueResult, error) {
	return s.issuer.Issue(invoiceId)
}

// RetrySignature retries the detached signature for an issued-but-unsigned
// invoice
func (s *Service) RetrySignature(invoiceId uuid.UUID) error {
	return s.issuer.RetrySignature(invoiceId)
}

// VerifyChain audits a company chain and returns the integrity report
func (s *Service) VerifyChain(
	companyId uuid.UUID,
	auditRange *chain.AuditRange,
) (chain.AuditReport, error) {
	return s.auditor.Verify(companyId, auditRange)
}

// StoreCertificate stores a new certificate version for a company and makes
// it active
func (s *Service) StoreCertificate(
	companyId uuid.UUID,
	certMaterial []byte,
	keyMaterial []byte,
	passphrase string,
	rotatedBy string,
	notes string,
) (uint, error) {
	if s.vault == nil {
		return 0, vault.ErrNotConfigured
	}
	return s.vault.Store(
		companyId,
		certMaterial,
		keyMaterial,
		passphrase,
		rotatedBy,
		notes,
	)
}

// CertificateHistory returns a company's certificate version metadata.
// Never includes secret bytes
func (s *Service) CertificateHistory(
	companyId uuid.UUID,
) ([]vault.VersionMetadata, error) {
	if s.vault == nil {
		return nil, vault.ErrNotConfigured
	}
	return s.vault.History(companyId)
}

// CompliancePayload renders the QR verification text for a committed invoice
func (s *Service) CompliancePayload(invoiceId uuid.UUID) (string, error) {
	invoice, err := s.db.InvoiceByID(invoiceId, nil)
	if err != nil {
		return "", err
	}
	return compliance.QRText(invoice)
}

// ComplianceDocument renders the structured verification document for a
// committed invoice
func (s *Service) ComplianceDocument(
	invoiceId uuid.UUID,
) (compliance.Document, error) {
	invoice, err := s.db.InvoiceByID(invoiceId, nil)
	if err != nil {
		return compliance.Document{}, err
	}
	return compliance.Render(invoice)
}

// DB returns the underlying database instance
func (s *Service) DB() *database.Database {
	return s.db
}

// EventBus returns the service event bus
func (s *Service) EventBus() *event.EventBus {
	return s.eventBus
}

// Close shuts down the service and its stores
func (s *Service) Close(ctx context.Context) error {
	var err error
	for _, shutdownFunc := range s.shutdownFuncs {
		err = errors.Join(err, shutdownFunc(ctx))
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
