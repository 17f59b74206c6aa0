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

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/chain"
	"github.com/openfiscal/chainvoice/internal/config"
	"github.com/spf13/cobra"
)

func issueCommand() *cobra.Command {
	var retrySignature bool
	cmd := &cobra.Command{
		Use:   "issue [invoice-id]",
		Short: "Issue an invoice onto its company hash chain",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			issueRun(cfg, args[0], retrySignature)
		},
	}
	cmd.Flags().
		BoolVar(&retrySignature, "retry-signature", false, "retry the detached signature for an already-issued invoice")
	return cmd
}

func issueRun(cfg *config.Config, rawId string, retrySignature bool) {
	logger := commonRun()

	invoiceId, err := uuid.Parse(rawId)
	if err != nil {
		slog.Error("invalid invoice id: " + err.Error())
		os.Exit(1)
	}

	svc, err := buildService(cfg, logger)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	defer closeService(svc)

	if retrySignature {
		if err := svc.RetrySignature(invoiceId); err != nil {
			slog.Error("signature retry failed: " + err.Error())
			os.Exit(1)
		}
		fmt.Printf("invoice %s: signature attached\n", invoiceId)
		return
	}

	result, err := svc.Issue(invoiceId)
	if err != nil {
		var validationErr chain.ValidationFailedError
		if errors.As(err, &validationErr) {
			fmt.Fprintf(
				os.Stderr,
				"invoice %s failed preflight: %s\n",
				invoiceId,
				strings.Join(validationErr.Codes(), ", "),
			)
		} else {
			slog.Error("issuance failed: " + err.Error())
		}
		os.Exit(1)
	}

	fmt.Printf("invoice %s issued\n", invoiceId)
	fmt.Printf("  position: %d\n", result.ChainPosition)
	fmt.Printf("  hash:     %s\n", result.Hash)
	fmt.Printf("  signed:   %t\n", result.Signed)

	// The QR payload is only renderable once the invoice is committed, so
	// any error here is unexpected
	payload, err := svc.CompliancePayload(invoiceId)
	if err != nil {
		slog.Warn("failed to render compliance payload: " + err.Error())
		return
	}
	fmt.Printf("  payload:  %s\n", payload)
}
