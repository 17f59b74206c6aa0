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
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/openfiscal/chainvoice/chain"
	"github.com/openfiscal/chainvoice/internal/config"
	"github.com/spf13/cobra"
)

func auditCommand() *cobra.Command {
	var fromPosition, toPosition uint64
	cmd := &cobra.Command{
		Use:   "audit [company-id]",
		Short: "Verify the integrity of a company hash chain",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			auditRun(cfg, args[0], fromPosition, toPosition)
		},
	}
	cmd.Flags().
		Uint64Var(&fromPosition, "from", 0, "first chain position to verify (default: start of chain)")
	cmd.Flags().
		Uint64Var(&toPosition, "to", 0, "last chain position to verify (default: chain tail)")
	return cmd
}

func auditRun(
	cfg *config.Config,
	rawId string,
	fromPosition, toPosition uint64,
) {
	logger := commonRun()

	companyId, err := uuid.Parse(rawId)
	if err != nil {
		slog.Error("invalid company id: " + err.Error())
		os.Exit(1)
	}

	svc, err := buildService(cfg, logger)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	defer closeService(svc)

	var auditRange *chain.AuditRange
	if fromPosition > 0 || toPosition > 0 {
		auditRange = &chain.AuditRange{
			From: fromPosition,
			To:   toPosition,
		}
	}

	report, err := svc.VerifyChain(companyId, auditRange)
	if err != nil {
		slog.Error("audit failed: " + err.Error())
		os.Exit(1)
	}

	fmt.Printf("company %s\n", companyId)
	fmt.Printf("  entries verified: %d\n", len(report.Entries))
	if report.ValidChain {
		fmt.Println("  chain intact")
	} else {
		fmt.Printf("  BROKEN LINKS: %d\n", len(report.BrokenLinks))
		for _, entry := range report.Entries {
			if entry.Valid {
				continue
			}
			fmt.Printf(
				"    position %d: stored %s, expected %s\n",
				entry.Position,
				entry.StoredHash,
				entry.ExpectedHash,
			)
		}
	}
	if len(report.Entries) > 0 {
		fmt.Printf("  first hash: %s\n", report.FirstHash)
		fmt.Printf("  last hash:  %s\n", report.LastHash)
	}
	if !report.ValidChain {
		os.Exit(1)
	}
}
