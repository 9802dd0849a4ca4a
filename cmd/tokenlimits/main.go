// Copyright 2024 AI SA Assistant Project
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

// Package main implements tokenlimits, a diagnostic that checks per-tenant
// token limits on an API Management gateway.
//
// Usage:
//
//	tokenlimits                   # auto-discover from terraform output
//	tokenlimits --burst fabrikam  # burst-test a specific tenant
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/tenant-throttle-probe/internal/config"
	"github.com/your-org/tenant-throttle-probe/internal/gateway"
	"github.com/your-org/tenant-throttle-probe/internal/probe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(config.NewResolver(config.LoadOptions{}), os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "  ERROR: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newRootCommand builds the CLI around a configuration resolver
func newRootCommand(resolver config.Resolver, out io.Writer) *cobra.Command {
	var burst string

	cmd := &cobra.Command{
		Use:   "tokenlimits",
		Short: "Test per-tenant token limits across all APIM subscriptions",
		Long: "Sends chat completions through every tenant subscription, bursts one tenant " +
			"until its token limit trips, and checks that another tenant is unaffected.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := run(cmd.Context(), resolver, out, burst)
			return err
		},
	}

	cmd.Flags().StringVar(&burst, "burst", "", "burst-test the first subscription whose name contains this text (case-insensitive)")

	return cmd
}

// run resolves configuration and executes every probe phase
func run(ctx context.Context, resolver config.Resolver, out io.Writer, override string) (*probe.Report, error) {
	_, _ = fmt.Fprintln(out, "Loading config...")

	cfg, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger = logger.With(zap.String("run_id", uuid.NewString()))
	logger.Debug("Configuration resolved",
		zap.String("source", cfg.Source),
		zap.String("gateway", cfg.Gateway.URL),
		zap.Strings("tenant_names", cfg.TenantNames()),
		zap.Any("tenants", cfg.MaskSensitiveValues().Tenants),
	)

	client, err := gateway.NewClientFromConfig(cfg.Gateway, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway client: %w", err)
	}

	reporter := probe.NewReporter(out)
	reporter.Config(client.Endpoint(), cfg.Tenants)

	runner := probe.NewRunner(client, cfg.Tenants, probe.SettingsFromConfig(cfg.Probe), reporter, logger)
	return runner.Run(ctx, override)
}

// initializeLogger creates a logger based on configuration settings.
// Logs go to stderr so they stay apart from the report on stdout.
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}

	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	return zapConfig.Build()
}
