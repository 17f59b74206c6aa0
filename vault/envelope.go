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

package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// Envelope layout (fixed external contract, base64-encoded):
//
//	wrapped_key || iv || ciphertext
//
// where wrapped_key is the random per-secret AES-256 key sealed under the
// master key (its own nonce prepended), iv is the data nonce, and
// ciphertext is the AES-256-GCM sealed secret.
const (
	envelopeKeySize   = 32
	envelopeNonceSize = 12
	envelopeTagSize   = 16
	// nonce + key + GCM tag
	wrappedKeySize = envelopeNonceSize + envelopeKeySize + envelopeTagSize
)

// ErrMalformedEnvelope is returned when an encrypted blob does not match
// the envelope layout or fails authentication
var ErrMalformedEnvelope = errors.New("malformed or corrupted envelope")

// sealEnvelope encrypts plaintext under a fresh random key, wraps that key
// under the master key, and returns the base64-encoded envelope.
func sealEnvelope(masterKey, plaintext []byte) ([]byte, error) {
	// Random per-secret key
	dataKey := make([]byte, envelopeKeySize)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, err
	}
	defer zeroBytes(dataKey)
	// Wrap the data key under the master key
	wrappedKey, err := gcmSeal(masterKey, dataKey)
	if err != nil {
		return nil, err
	}
	// Seal the secret under the data key
	sealed, err := gcmSeal(dataKey, plaintext)
	if err != nil {
		return nil, err
	}
	blob := make([]byte, 0, len(wrappedKey)+len(sealed))
	blob = append(blob, wrappedKey...)
	blob = append(blob, sealed...)
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(blob)))
	base64.StdEncoding.Encode(encoded, blob)
	return encoded, nil
}

// openEnvelope reverses sealEnvelope. Any layout or authentication failure
// is reported as ErrMalformedEnvelope without detail to avoid oracle leaks.
func openEnvelope(masterKey, envelope []byte) ([]byte, error) {
	blob := make([]byte, base64.StdEncoding.DecodedLen(len(envelope)))
	n, err := base64.StdEncoding.Decode(blob, envelope)
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	blob = blob[:n]
	if len(blob) < wrappedKeySize+envelopeNonceSize+envelopeTagSize {
		return nil, ErrMalformedEnvelope
	}
	dataKey, err := gcmOpen(masterKey, blob[:wrappedKeySize])
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	defer zeroBytes(dataKey)
	plaintext, err := gcmOpen(dataKey, blob[wrappedKeySize:])
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	return plaintext, nil
}

// gcmSeal returns nonce || AES-256-GCM ciphertext
func gcmSeal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, envelopeNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// gcmOpen reverses gcmSeal
func gcmOpen(key, sealed []byte) ([]byte, error) {
	if len(sealed) < envelopeNonceSize {
		return nil, fmt.Errorf("sealed data too short: %d", len(sealed))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := sealed[:envelopeNonceSize]
	return aead.Open(nil, nonce, sealed[envelopeNonceSize:], nil)
}

// zeroBytes overwrites secret material once it is no longer needed
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
