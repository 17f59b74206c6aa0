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
	"github.com/openfiscal/chainvoice/internal/config"
	"github.com/spf13/cobra"
)

func certCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Manage company signing certificates",
	}
	cmd.AddCommand(certStoreCommand())
	cmd.AddCommand(certHistoryCommand())
	return cmd
}

func certStoreCommand() *cobra.Command {
	var certFile, keyFile, passphrase, rotatedBy, notes string
	cmd := &cobra.Command{
		Use:   "store [company-id]",
		Short: "Store a new certificate version and make it active",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			certStoreRun(
				cfg,
				args[0],
				certFile,
				keyFile,
				passphrase,
				rotatedBy,
				notes,
			)
		},
	}
	cmd.Flags().
		StringVar(&certFile, "cert", "", "path to the PEM certificate")
	cmd.Flags().
		StringVar(&keyFile, "key", "", "path to the PEM private key")
	cmd.Flags().
		StringVar(&passphrase, "passphrase", "", "passphrase for an encrypted private key")
	cmd.Flags().
		StringVar(&rotatedBy, "rotated-by", "", "operator recording this rotation")
	cmd.Flags().
		StringVar(&notes, "notes", "", "free-form rotation notes")
	_ = cmd.MarkFlagRequired("cert")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func certStoreRun(
	cfg *config.Config,
	rawId string,
	certFile, keyFile, passphrase, rotatedBy, notes string,
) {
	logger := commonRun()

	companyId, err := uuid.Parse(rawId)
	if err != nil {
		slog.Error("invalid company id: " + err.Error())
		os.Exit(1)
	}
	certMaterial, err := os.ReadFile(certFile)
	if err != nil {
		slog.Error("failed to read certificate: " + err.Error())
		os.Exit(1)
	}
	keyMaterial, err := os.ReadFile(keyFile)
	if err != nil {
		slog.Error("failed to read private key: " + err.Error())
		os.Exit(1)
	}

	svc, err := buildService(cfg, logger)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	defer closeService(svc)

	version, err := svc.StoreCertificate(
		companyId,
		certMaterial,
		keyMaterial,
		passphrase,
		rotatedBy,
		notes,
	)
	if err != nil {
		slog.Error("failed to store certificate: " + err.Error())
		os.Exit(1)
	}
	fmt.Printf(
		"company %s: certificate version %d stored and active\n",
		companyId,
		version,
	)
}

func certHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [company-id]",
		Short: "Show a company's certificate version history",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			certHistoryRun(cfg, args[0])
		},
	}
	return cmd
}

func certHistoryRun(cfg *config.Config, rawId string) {
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

	history, err := svc.CertificateHistory(companyId)
	if err != nil {
		slog.Error("failed to load certificate history: " + err.Error())
		os.Exit(1)
	}

	fmt.Printf("company %s: %d certificate version(s)\n", companyId, len(history))
	for _, meta := range history {
		marker := " "
		if meta.IsActive {
			marker = "*"
		}
		fmt.Printf(
			"%s v%d  stored %s  by %q  subject %q  valid %s..%s  integrity %s\n",
			marker,
			meta.Version,
			meta.StoredAt.Format("2006-01-02 15:04:05"),
			meta.RotatedBy,
			meta.Subject,
			meta.NotBefore.Format("2006-01-02"),
			meta.NotAfter.Format("2006-01-02"),
			meta.IntegrityHash[:12],
		)
	}
}
