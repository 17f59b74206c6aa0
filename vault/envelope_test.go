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
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMasterKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, envelopeKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEnvelopeRoundTrip(t *testing.T) {
	masterKey := testMasterKey(t)
	plaintext := []byte("-----BEGIN CERTIFICATE-----\nsecret material\n")
	envelope, err := sealEnvelope(masterKey, plaintext)
	require.NoError(t, err)
	decrypted, err := openEnvelope(masterKey, envelope)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEnvelopeLayout(t *testing.T) {
	masterKey := testMasterKey(t)
	plaintext := []byte("payload")
	envelope, err := sealEnvelope(masterKey, plaintext)
	require.NoError(t, err)
	blob, err := base64.StdEncoding.DecodeString(string(envelope))
	require.NoError(t, err)
	// wrapped_key || iv || ciphertext+tag
	expectedLen := wrappedKeySize +
		envelopeNonceSize +
		len(plaintext) +
		envelopeTagSize
	assert.Len(t, blob, expectedLen)
}

func TestEnvelopeUniqueKeys(t *testing.T) {
	masterKey := testMasterKey(t)
	plaintext := []byte("same secret")
	first, err := sealEnvelope(masterKey, plaintext)
	require.NoError(t, err)
	second, err := sealEnvelope(masterKey, plaintext)
	require.NoError(t, err)
	// Fresh random data key and nonces per seal
	assert.False(t, bytes.Equal(first, second))
}

func TestEnvelopeWrongMasterKey(t *testing.T) {
	masterKey := testMasterKey(t)
	envelope, err := sealEnvelope(masterKey, []byte("secret"))
	require.NoError(t, err)
	_, err = openEnvelope(testMasterKey(t), envelope)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestEnvelopeTamperDetection(t *testing.T) {
	masterKey := testMasterKey(t)
	envelope, err := sealEnvelope(masterKey, []byte("secret"))
	require.NoError(t, err)
	blob, err := base64.StdEncoding.DecodeString(string(envelope))
	require.NoError(t, err)
	// Flip one ciphertext bit
	blob[len(blob)-1] ^= 0x01
	tampered := []byte(base64.StdEncoding.EncodeToString(blob))
	_, err = openEnvelope(masterKey, tampered)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestEnvelopeMalformedInput(t *testing.T) {
	masterKey := testMasterKey(t)
	testDefs := [][]byte{
		nil,
		[]byte("not base64 at all!!"),
		[]byte(base64.StdEncoding.EncodeToString([]byte("too short"))),
	}
	for _, testDef := range testDefs {
		_, err := openEnvelope(masterKey, testDef)
		assert.ErrorIs(t, err, ErrMalformedEnvelope)
	}
}

func TestDecodeMasterKey(t *testing.T) {
	raw := testMasterKey(t)

	decoded, err := DecodeMasterKey(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	decoded, err = DecodeMasterKey([]byte(hex.EncodeToString(raw) + "\n"))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	decoded, err = DecodeMasterKey(
		[]byte(base64.StdEncoding.EncodeToString(raw)),
	)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	_, err = DecodeMasterKey([]byte("short"))
	assert.ErrorIs(t, err, ErrMasterKeySize)
}
