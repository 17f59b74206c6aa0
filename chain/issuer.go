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

package chain

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/database"
	"github.com/openfiscal/chainvoice/database/models"
	"github.com/openfiscal/chainvoice/event"
	"github.com/openfiscal/chainvoice/validation"
	"github.com/prometheus/client_golang/prometheus"
)

// Signer produces a detached signature over a committed chain hash. Signing
// is best-effort: a failure leaves the invoice issued but unsigned.
type Signer interface {
	Sign(companyId uuid.UUID, payload []byte) ([]byte, error)
}

// IssuerConfig holds configuration for the Issuer.
type IssuerConfig struct {
	DB           *database.Database
	Validator    *validation.Validator
	EventBus     *event.EventBus
	Signer       Signer
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

// IssueResult reports a successful chain commit
type IssueResult struct {
	Hash          string
	ChainPosition uint64
	Signed        bool
}

// Issuer atomically computes and commits the next hash-linked invoice
// record per company. Issuance for a given company is serialized; different
// companies issue concurrently without contention.
type Issuer struct {
	db        *database.Database
	validator *validation.Validator
	eventBus  *event.EventBus
	signer    Signer
	logger    *slog.Logger
	metrics   *issuerMetrics
	now       func() time.Time

	// Per-company issuance serialization
	companyLocks sync.Map
}

type issuerMetrics struct {
	issuedTotal *prometheus.CounterVec
	failedTotal *prometheus.CounterVec
}

func NewIssuer(cfg IssuerConfig) *Issuer {
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	i := &Issuer{
		db:        cfg.DB,
		validator: cfg.Validator,
		eventBus:  cfg.EventBus,
		signer:    cfg.Signer,
		logger:    logger.With("component", "issuer"),
		now:       time.Now,
	}
	if cfg.PromRegistry != nil {
		i.initMetrics(cfg.PromRegistry)
	}
	return i
}

func (i *Issuer) initMetrics(promRegistry prometheus.Registerer) {
	i.metrics = &issuerMetrics{
		issuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainvoice_invoices_issued_total",
				Help: "Total number of invoices committed to a chain",
			},
			[]string{"company_id"},
		),
		failedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainvoice_issue_failures_total",
				Help: "Total number of failed issuance attempts by reason",
			},
			[]string{"reason"},
		),
	}
	promRegistry.MustRegister(i.metrics.issuedTotal)
	promRegistry.MustRegister(i.metrics.failedTotal)
}

// Issue links the invoice into its company's hash chain. On success the
// invoice is legally issued; a failed post-commit signature is reported via
// IssueResult.Signed and is retryable with RetrySignature.
func (i *Issuer) Issue(invoiceId uuid.UUID) (IssueResult, error) {
	// Look up the invoice outside the lock to learn its company
	invoice, err := i.db.InvoiceByID(invoiceId, nil)
	if err != nil {
		i.countFailure("lookup")
		return IssueResult{}, NewStorageFailureError(err)
	}

	// Exclusive per-company section
	lock, _ := i.companyLocks.LoadOrStore(invoice.CompanyID, &sync.Mutex{})
	mutex := lock.(*sync.Mutex)
	mutex.Lock()
	defer mutex.Unlock()

	var result IssueResult
	txn := i.db.Transaction(true)
	err = txn.Do(func(txn *database.Txn) error {
		// Re-read and re-validate inside the exclusive boundary: state may
		// have changed since any earlier check outside the lock
		invoice, err = i.db.InvoiceByID(invoiceId, txn)
		if err != nil {
			return NewStorageFailureError(err)
		}
		preflight, err := i.validator.Validate(invoice, txn)
		if err != nil {
			return NewStorageFailureError(err)
		}
		if !preflight.OK {
			return NewValidationFailedError(preflight.Errors)
		}
		// Read the chain tail
		tail, err := i.db.ChainStateGet(invoice.CompanyID, txn)
		if err != nil {
			return NewStorageFailureError(err)
		}
		company, err := i.db.CompanyByID(invoice.CompanyID, txn)
		if err != nil {
			return NewStorageFailureError(err)
		}
		client, err := i.db.ClientByID(invoice.ClientID, txn)
		if err != nil {
			return NewStorageFailureError(err)
		}
		// Compute the next link
		canonical := CanonicalFields{
			PreviousHash: tail.LastHash,
			FullNumber:   invoice.FullNumber,
			InvoiceDate:  invoice.InvoiceDate,
			Total:        invoice.Total,
			IssuerTaxId:  company.TaxID,
			ClientTaxId:  client.TaxID,
		}
		hash := canonical.Hash()
		position := tail.LastPosition + 1
		// Commit invoice chain fields and tail advance atomically
		issuedAt := i.now()
		if err := i.db.InvoiceMarkIssued(invoiceId, hash, position, issuedAt, txn); err != nil {
			return NewStorageFailureError(err)
		}
		if err := i.db.ChainStateAdvance(invoice.CompanyID, hash, position, txn); err != nil {
			if errors.Is(err, database.ErrChainStateConflict) {
				return ErrConcurrencyConflict
			}
			return NewStorageFailureError(err)
		}
		result = IssueResult{
			Hash:          hash,
			ChainPosition: position,
		}
		return nil
	})
	if err != nil {
		i.countIssueError(err)
		return IssueResult{}, err
	}

	i.logger.Info(
		"invoice committed to chain",
		"invoice_id", invoiceId.String(),
		"company_id", invoice.CompanyID.String(),
		"full_number", invoice.FullNumber,
		"chain_position", result.ChainPosition,
		"hash", result.Hash,
	)
	if i.metrics != nil {
		i.metrics.issuedTotal.
			WithLabelValues(invoice.CompanyID.String()).
			Inc()
	}

	// Best-effort detached signature. The invoice is already legally issued
	// once its hash is committed; a missing signature is a separately
	// retryable degraded state.
	result.Signed = i.trySign(invoiceId, invoice.CompanyID, result.Hash)

	if i.eventBus != nil {
		i.eventBus.Publish(
			event.InvoiceIssuedEventType,
			event.NewEvent(
				event.InvoiceIssuedEventType,
				event.InvoiceIssuedEvent{
					InvoiceId:     invoiceId,
					CompanyId:     invoice.CompanyID,
					FullNumber:    invoice.FullNumber,
					ChainHash:     result.Hash,
					ChainPosition: result.ChainPosition,
					IssuedAt:      i.now(),
					Signed:        result.Signed,
				},
			),
		)
	}
	return result, nil
}

// RetrySignature attempts the detached signature for an invoice that was
// issued without one
func (i *Issuer) RetrySignature(invoiceId uuid.UUID) error {
	invoice, err := i.db.InvoiceByID(invoiceId, nil)
	if err != nil {
		return err
	}
	if invoice.Status != models.InvoiceStatusIssued || invoice.ChainHash == "" {
		return ErrNotCommitted
	}
	if !i.trySign(invoiceId, invoice.CompanyID, invoice.ChainHash) {
		return errors.New("signature attempt failed")
	}
	return nil
}

// trySign signs the committed hash and stores the signature. Returns false
// on any failure; never affects the committed chain fields.
func (i *Issuer) trySign(
	invoiceId uuid.UUID,
	companyId uuid.UUID,
	hash string,
) bool {
	if i.signer == nil {
		return false
	}
	signature, err := i.signer.Sign(companyId, []byte(hash))
	if err != nil {
		i.logger.Warn(
			"invoice issued but signature failed",
			"invoice_id", invoiceId.String(),
			"error", err,
		)
		i.countFailure("signature")
		return false
	}
	if err := i.db.InvoiceSetSignature(invoiceId, signature, nil); err != nil {
		i.logger.Warn(
			"failed to store invoice signature",
			"invoice_id", invoiceId.String(),
			"error", err,
		)
		i.countFailure("signature_store")
		return false
	}
	return true
}

func (i *Issuer) countIssueError(err error) {
	var validationErr ValidationFailedError
	switch {
	case errors.As(err, &validationErr):
		i.countFailure("validation")
	case errors.Is(err, ErrConcurrencyConflict):
		i.countFailure("conflict")
	default:
		i.countFailure("storage")
	}
}

func (i *Issuer) countFailure(reason string) {
	if i.metrics != nil {
		i.metrics.failedTotal.WithLabelValues(reason).Inc()
	}
}
