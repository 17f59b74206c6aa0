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
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/getsops/sops/v3/decrypt"
)

// ErrMasterKeySize is returned when the decoded master key is not exactly
// 32 bytes (AES-256)
var ErrMasterKeySize = errors.New("master key must be 32 bytes")

// LoadMasterKeyFile reads the vault master key from a file. The file may be
// sops-encrypted, in which case it is decrypted in memory using the
// operator's configured KMS. The decoded content may be raw bytes, hex, or
// base64.
func LoadMasterKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read master key file: %w", err)
	}
	if bytes.Contains(data, []byte(`"sops"`)) {
		decrypted, err := decrypt.Data(data, "binary")
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt master key file: %w", err)
		}
		data = decrypted
	}
	return DecodeMasterKey(data)
}

// DecodeMasterKey normalizes master key material to raw bytes. Accepts raw
// 32-byte content, 64 hex characters, or standard base64.
func DecodeMasterKey(data []byte) ([]byte, error) {
	// Raw keys are checked before trimming: a raw byte is allowed to look
	// like whitespace
	if len(data) == 32 {
		return data, nil
	}
	trimmed := []byte(strings.TrimSpace(string(data)))
	if len(trimmed) == 32 {
		return trimmed, nil
	}
	if decoded, err := hex.DecodeString(string(trimmed)); err == nil {
		if len(decoded) != 32 {
			return nil, ErrMasterKeySize
		}
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil {
		if len(decoded) != 32 {
			return nil, ErrMasterKeySize
		}
		return decoded, nil
	}
	return nil, ErrMasterKeySize
}
