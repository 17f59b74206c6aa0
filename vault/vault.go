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

// Package vault custodies the signing certificates used for the invoice
// chain. Certificate and key material is envelope-encrypted at rest,
// versions are append-only with exactly one active version per company, and
// plaintext key material only ever exists transiently inside a signing call.
package vault

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/database"
	"github.com/openfiscal/chainvoice/database/models"
)

// Common errors returned by Vault operations.
var (
	ErrInvalidFormat = errors.New("invalid certificate or key format")
	ErrBadPassphrase = errors.New("bad passphrase for private key")
	ErrExpired       = errors.New("certificate validity window has passed")
	ErrNotConfigured = errors.New("no active certificate configured")
)

// VaultConfig holds configuration for the Vault.
type VaultConfig struct {
	// DB is the backing database.
	DB *database.Database
	// MasterKey is the 32-byte server-held key protecting the per-secret
	// envelope keys. It never leaves the server process.
	MasterKey []byte
	// Logger for vault events.
	Logger *slog.Logger
}

// Vault stores and uses per-company signing certificates.
type Vault struct {
	db        *database.Database
	masterKey []byte
	logger    *slog.Logger
	now       func() time.Time

	// Per-company signing serialization
	signLocks sync.Map
}

// NewVault creates a new Vault with the given configuration.
func NewVault(cfg VaultConfig) (*Vault, error) {
	if cfg.DB == nil {
		return nil, errors.New("no database provided")
	}
	if len(cfg.MasterKey) != envelopeKeySize {
		return nil, ErrMasterKeySize
	}
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Vault{
		db:        cfg.DB,
		masterKey: cfg.MasterKey,
		logger:    logger.With("component", "vault"),
		now:       time.Now,
	}, nil
}

// VersionMetadata describes one stored certificate version. It never
// contains secret bytes.
type VersionMetadata struct {
	Version       uint
	StoredAt      time.Time
	RotatedBy     string
	IntegrityHash string
	Subject       string
	NotBefore     time.Time
	NotAfter      time.Time
	CertLen       int
	KeyLen        int
	PassPresent   bool
	IsActive      bool
}

// Store validates, encrypts, and persists a new certificate version for a
// company, atomically making it the active version. Passphrase may be empty
// for an unencrypted private key. Returns the new version number.
func (v *Vault) Store(
	companyId uuid.UUID,
	certMaterial []byte,
	keyMaterial []byte,
	passphrase string,
	rotatedBy string,
	notes string,
) (uint, error) {
	// Confirm the material is a structurally valid cert/key pair before
	// anything is written
	cert, err := parseCertificate(certMaterial)
	if err != nil {
		return 0, err
	}
	privKey, err := parsePrivateKey(keyMaterial, passphrase)
	if err != nil {
		return 0, err
	}
	if !keyMatchesCertificate(privKey, cert) {
		return 0, fmt.Errorf("%w: private key does not match certificate", ErrInvalidFormat)
	}
	// Integrity hash over the raw uploaded material
	combined := make([]byte, 0, len(certMaterial)+len(keyMaterial))
	combined = append(combined, certMaterial...)
	combined = append(combined, keyMaterial...)
	integrityHash := sha256.Sum256(combined)

	// Envelope-encrypt each secret independently
	blobs := make(map[string][]byte)
	if blobs[database.CertBlobFieldCert], err = sealEnvelope(v.masterKey, certMaterial); err != nil {
		return 0, err
	}
	if blobs[database.CertBlobFieldKey], err = sealEnvelope(v.masterKey, keyMaterial); err != nil {
		return 0, err
	}
	if passphrase != "" {
		if blobs[database.CertBlobFieldPass], err = sealEnvelope(v.masterKey, []byte(passphrase)); err != nil {
			return 0, err
		}
	}

	var newVersion uint
	txn := v.db.Transaction(true)
	err = txn.Do(func(txn *database.Txn) error {
		version, err := v.db.CertificateNextVersion(companyId, txn)
		if err != nil {
			return err
		}
		newVersion = version
		row := models.CertificateVersion{
			CompanyID:     companyId,
			Version:       version,
			IntegrityHash: hex.EncodeToString(integrityHash[:]),
			Subject:       cert.Subject.String(),
			Issuer:        cert.Issuer.String(),
			SerialNumber:  cert.SerialNumber.String(),
			NotBefore:     cert.NotBefore,
			NotAfter:      cert.NotAfter,
			CertLen:       len(certMaterial),
			KeyLen:        len(keyMaterial),
			PassPresent:   passphrase != "",
			StoredAt:      v.now(),
			RotatedBy:     rotatedBy,
			Notes:         notes,
		}
		return v.db.CertificateInsert(&row, blobs, txn)
	})
	if err != nil {
		return 0, err
	}
	v.logger.Info(
		"stored certificate version",
		"company_id", companyId.String(),
		"version", newVersion,
		"subject", cert.Subject.String(),
		"not_after", cert.NotAfter,
	)
	return newVersion, nil
}

// History returns the version metadata for all of a company's stored
// certificates in ascending version order. No secret bytes.
func (v *Vault) History(companyId uuid.UUID) ([]VersionMetadata, error) {
	rows, err := v.db.CertificateHistory(companyId, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]VersionMetadata, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, VersionMetadata{
			Version:       row.Version,
			StoredAt:      row.StoredAt,
			RotatedBy:     row.RotatedBy,
			IntegrityHash: row.IntegrityHash,
			Subject:       row.Subject,
			NotBefore:     row.NotBefore,
			NotAfter:      row.NotAfter,
			CertLen:       row.CertLen,
			KeyLen:        row.KeyLen,
			PassPresent:   row.PassPresent,
			IsActive:      row.IsActive,
		})
	}
	return ret, nil
}

// Sign produces a detached signature over payload using the company's
// active certificate. Signing calls for the same company are serialized;
// decrypted key material never outlives the call.
func (v *Vault) Sign(companyId uuid.UUID, payload []byte) ([]byte, error) {
	lock, _ := v.signLocks.LoadOrStore(companyId, &sync.Mutex{})
	mutex := lock.(*sync.Mutex)
	mutex.Lock()
	defer mutex.Unlock()

	active, err := v.db.CertificateActive(companyId, nil)
	if err != nil {
		if errors.Is(err, database.ErrCertificateNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}
	if v.now().After(active.NotAfter) {
		return nil, ErrExpired
	}
	privKey, cleanup, err := v.retrieveActiveKey(active)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	digest := sha256.Sum256(payload)
	signature, err := signDigest(privKey, digest[:])
	if err != nil {
		return nil, err
	}
	v.logger.Debug(
		"signed payload",
		"company_id", companyId.String(),
		"version", active.Version,
	)
	return signature, nil
}

// retrieveActiveKey decrypts the active version's private key. The returned
// cleanup func zeroes the intermediate plaintext buffers; the caller must
// invoke it before returning.
func (v *Vault) retrieveActiveKey(
	active models.CertificateVersion,
) (crypto.Signer, func(), error) {
	keyBlob, err := v.db.CertificateBlob(
		active.CompanyID,
		active.Version,
		database.CertBlobFieldKey,
		nil,
	)
	if err != nil {
		return nil, nil, err
	}
	keyMaterial, err := openEnvelope(v.masterKey, keyBlob)
	if err != nil {
		return nil, nil, err
	}
	passphrase := ""
	if active.PassPresent {
		passBlob, err := v.db.CertificateBlob(
			active.CompanyID,
			active.Version,
			database.CertBlobFieldPass,
			nil,
		)
		if err != nil {
			zeroBytes(keyMaterial)
			return nil, nil, err
		}
		passBytes, err := openEnvelope(v.masterKey, passBlob)
		if err != nil {
			zeroBytes(keyMaterial)
			return nil, nil, err
		}
		passphrase = string(passBytes)
		zeroBytes(passBytes)
	}
	privKey, err := parsePrivateKey(keyMaterial, passphrase)
	cleanup := func() { zeroBytes(keyMaterial) }
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return privKey, cleanup, nil
}

// parseCertificate decodes a PEM-encoded X.509 certificate
func parseCertificate(certMaterial []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certMaterial)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%w: no certificate PEM block", ErrInvalidFormat)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, err)
	}
	return cert, nil
}

// parsePrivateKey decodes a PEM-encoded private key, decrypting legacy
// RFC 1423 encrypted blocks with the given passphrase when present.
func parsePrivateKey(
	keyMaterial []byte,
	passphrase string,
) (crypto.Signer, error) {
	block, _ := pem.Decode(keyMaterial)
	if block == nil {
		return nil, fmt.Errorf("%w: no private key PEM block", ErrInvalidFormat)
	}
	der := block.Bytes
	wasEncrypted := false
	//nolint:staticcheck // legacy encrypted PEM uploads are still accepted
	if x509.IsEncryptedPEMBlock(block) {
		if passphrase == "" {
			return nil, ErrBadPassphrase
		}
		//nolint:staticcheck
		decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, ErrBadPassphrase
		}
		der = decrypted
		wasEncrypted = true
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidFormat, key)
		}
		return signer, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	if wasEncrypted {
		// RFC 1423 has no integrity check: a wrong passphrase can decrypt
		// to garbage without a padding error
		return nil, ErrBadPassphrase
	}
	return nil, fmt.Errorf("%w: unparseable private key", ErrInvalidFormat)
}

// keyMatchesCertificate reports whether the private key corresponds to the
// certificate's public key
func keyMatchesCertificate(key crypto.Signer, cert *x509.Certificate) bool {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return pub.Equal(key.Public())
	case *ecdsa.PublicKey:
		return pub.Equal(key.Public())
	case ed25519.PublicKey:
		return pub.Equal(key.Public())
	default:
		return false
	}
}

// signDigest signs a SHA-256 digest with the appropriate scheme for the key
func signDigest(key crypto.Signer, digest []byte) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, digest)
	case *ecdsa.PrivateKey:
		return ecdsa.SignASN1(rand.Reader, k, digest)
	case ed25519.PrivateKey:
		// Ed25519 signs the message directly rather than a digest
		return k.Sign(rand.Reader, digest, crypto.Hash(0))
	default:
		return nil, fmt.Errorf("%w: unsupported signing key type %T", ErrInvalidFormat, key)
	}
}
