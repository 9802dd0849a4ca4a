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

// Package probe drives a throughput-policy check against a multi-tenant
// gateway: a baseline sweep over every tenant, a concurrent burst on one
// tenant, sequential escalation when the burst is not throttled, and a
// cross-tenant isolation check.
package probe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/tenant-throttle-probe/internal/config"
	"github.com/your-org/tenant-throttle-probe/internal/gateway"
)

// Chatter performs one chat-completion call and never fails: every problem is
// reported through the returned outcome.
type Chatter interface {
	Chat(ctx context.Context, tenant config.Tenant, prompt string, maxTokens int) gateway.Outcome
}

// Settings are the policy knobs of a run
type Settings struct {
	BaselineTenant     string
	BurstCount         int
	BurstMaxTokens     int
	SweepMaxTokens     int
	SweepDelay         time.Duration
	EscalationAttempts int
}

// SettingsFromConfig maps probe configuration onto run settings
func SettingsFromConfig(cfg config.ProbeConfig) Settings {
	return Settings{
		BaselineTenant:     cfg.BaselineTenant,
		BurstCount:         cfg.BurstCount,
		BurstMaxTokens:     cfg.BurstMaxTokens,
		SweepMaxTokens:     cfg.SweepMaxTokens,
		SweepDelay:         cfg.SweepDelay,
		EscalationAttempts: cfg.EscalationAttempts,
	}
}

// Report is everything a run observed
type Report struct {
	Selection  Selection
	Sweep      []TenantOutcome
	Burst      BurstResultSet
	Escalation *EscalationResult
	Isolation  TenantOutcome

	// Throttled is true when either the burst or the escalation saw a 429
	Throttled bool
	// Overall aggregates the burst and escalation calls against the target
	Overall Summary
}

// Runner executes the probe phases. Tenants are shared read-only.
type Runner struct {
	chat     Chatter
	tenants  []config.Tenant
	settings Settings
	reporter *Reporter
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes a Runner
type Option func(*Runner)

// WithSleeper replaces the pause used between sweep calls
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// NewRunner creates a runner over tenants in their configured order
func NewRunner(chat Chatter, tenants []config.Tenant, settings Settings, reporter *Reporter, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = NewReporter(nil)
	}

	r := &Runner{
		chat:     chat,
		tenants:  tenants,
		settings: settings,
		reporter: reporter,
		logger:   logger,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes all phases. Target selection happens before any request, so an
// override that matches nothing fails without touching the gateway.
func (r *Runner) Run(ctx context.Context, override string) (*Report, error) {
	sel, err := Select(r.tenants, r.settings.BaselineTenant, override)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Starting throttle probe",
		zap.String("burst_target", sel.BurstTarget.Name),
		zap.String("isolation_target", sel.IsolationTarget.Name),
		zap.Int("tenants", len(r.tenants)),
		zap.Int("burst_count", r.settings.BurstCount),
	)

	report := &Report{Selection: sel}

	r.reporter.Phase("PHASE 1: Chat completions across all subscriptions")
	report.Sweep = r.Sequential(ctx, r.tenants, sweepPrompt)

	r.reporter.Phase(fmt.Sprintf("PHASE 2: CONCURRENT burst on %s", sel.BurstTarget.Name),
		fmt.Sprintf("Sending %d parallel requests with max_tokens=%d each", r.settings.BurstCount, r.settings.BurstMaxTokens))
	report.Burst = r.Burst(ctx, sel.BurstTarget, r.settings.BurstCount, r.settings.BurstMaxTokens)

	burstSummary := report.Burst.Summary()
	r.reporter.Summary(burstSummary)
	report.Throttled = report.Burst.Throttled

	if report.Burst.Throttled {
		r.reporter.Line(">>> Token limit policy is WORKING!")
	} else {
		r.reporter.Line(">>> No 429s detected. Sending %d more sequential requests...", r.settings.EscalationAttempts)
		esc := r.Escalate(ctx, sel.BurstTarget, r.settings.BurstCount+1, r.settings.EscalationAttempts,
			r.settings.BurstMaxTokens, burstSummary.TotalTokens)
		report.Escalation = &esc
		report.Throttled = esc.Throttled
		r.reportEscalation(esc)
	}

	if report.Escalation != nil {
		report.Overall = SummarizeResults(report.Burst.Results, report.Escalation.Results)
		r.reporter.Overall(report.Overall)
	} else {
		report.Overall = burstSummary
	}

	r.reporter.Phase(fmt.Sprintf("PHASE 3: Cross-tenant isolation (%s should still work)", sel.IsolationTarget.Name))
	report.Isolation = TenantOutcome{
		Tenant:  sel.IsolationTarget,
		Outcome: r.VerifyIsolation(ctx, sel.IsolationTarget),
	}
	switch {
	case !report.Isolation.Outcome.Succeeded():
	case report.Throttled:
		r.reporter.Line(">>> Per-tenant isolation confirmed: %s throttled, %s unaffected",
			sel.BurstTarget.Name, sel.IsolationTarget.Name)
	default:
		r.reporter.Line(">>> %s unaffected by the burst on %s, but %s was never throttled so isolation is unproven",
			sel.IsolationTarget.Name, sel.BurstTarget.Name, sel.BurstTarget.Name)
	}

	r.reporter.Done()

	r.logger.Info("Throttle probe finished",
		zap.Bool("throttled", report.Throttled),
		zap.Bool("isolation_ok", report.Isolation.Outcome.Succeeded()),
		zap.Int("succeeded", report.Overall.Succeeded),
		zap.Int("rate_limited", report.Overall.Throttled),
		zap.Int("failed", report.Overall.Failed),
		zap.Int("total_tokens", report.Overall.TotalTokens),
	)

	return report, nil
}

func (r *Runner) reportEscalation(esc EscalationResult) {
	total := esc.TotalTokens()
	switch {
	case esc.Throttled:
		r.reporter.Line(">>> Token limit policy is WORKING after %d total tokens (%d during escalation)", total, esc.CumulativeTokens)
	case esc.Aborted:
		r.reporter.Line(">>> Escalation aborted on an unexpected error after %d total tokens", total)
	default:
		r.reporter.Line(">>> No 429s after %d escalation requests and %d total tokens", esc.Attempts, total)
	}
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sweepPrompt(tenant config.Tenant) string {
	return fmt.Sprintf("Tell me one fun fact about %s in 1 sentence.", tenant.Name)
}
