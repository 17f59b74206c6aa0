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

package event

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceIssuedEventType is the event type for committed chain issuances
const InvoiceIssuedEventType = EventType("invoice.issued")

// InvoiceIssuedEvent is emitted after an invoice has been committed to the
// company hash chain. The invoice is legally issued at this point; Signed
// reports whether the best-effort detached signature also succeeded.
type InvoiceIssuedEvent struct {
	InvoiceId     uuid.UUID
	CompanyId     uuid.UUID
	FullNumber    string
	ChainHash     string
	ChainPosition uint64
	IssuedAt      time.Time
	Signed        bool
}

// ChainIntegrityEventType is the event type for detected chain breaks
const ChainIntegrityEventType = EventType("chain.integrity")

// ChainIntegrityEvent is emitted when an audit detects a broken link. It is
// a standing alert requiring manual investigation; the chain is never
// auto-repaired.
type ChainIntegrityEvent struct {
	CompanyId     uuid.UUID
	BrokenLinks   []uint64
	FirstPosition uint64
	LastPosition  uint64
}
