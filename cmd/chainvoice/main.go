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
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openfiscal/chainvoice"
	"github.com/openfiscal/chainvoice/internal/config"
	"github.com/openfiscal/chainvoice/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	programName = "chainvoice"
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

func commonRun() *slog.Logger {
	// Configure logger
	logLevel := slog.LevelInfo
	addSource := false
	if globalFlags.debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	// Configure max processes with our logger wrapper, toss undo func
	_, err := maxprocs.Set(maxprocs.Logger(slogPrintf))
	if err != nil {
		// If we hit this, something really wrong happened
		slog.Error(err.Error())
		os.Exit(1)
	}
	logger.Info(
		"version: "+version.GetVersionString(),
		"component", programName,
	)
	return logger
}

// buildService opens the service with stores and vault wired from the
// loaded config
func buildService(
	cfg *config.Config,
	logger *slog.Logger,
) (*chainvoice.Service, error) {
	opts := []chainvoice.ConfigOptionFunc{
		chainvoice.WithDataDir(cfg.DataDir),
		chainvoice.WithLogger(logger),
		chainvoice.WithPrometheusRegistry(prometheus.NewRegistry()),
		chainvoice.WithTracing(cfg.Tracing),
		chainvoice.WithTracingStdout(cfg.TracingStdout),
	}
	if cfg.MasterKeyFile != "" {
		opts = append(opts, chainvoice.WithMasterKeyFile(cfg.MasterKeyFile))
	}
	svc, err := chainvoice.New(chainvoice.NewConfig(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}

func closeService(svc *chainvoice.Service) {
	if err := svc.Close(context.Background()); err != nil {
		slog.Warn(
			"failed to close service cleanly",
			"error", err,
			"component", programName,
		)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Legally-binding invoice hash chain issuance",
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(issueCommand())
	rootCmd.AddCommand(auditCommand())
	rootCmd.AddCommand(certCommand())
	rootCmd.AddCommand(versionCommand())

	// Execute cobra command
	if err := rootCmd.Execute(); err != nil {
		// NOTE: we purposely don't display the error, since cobra will have already displayed it
		os.Exit(1)
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", programName, version.GetVersionString())
		},
	}
}
