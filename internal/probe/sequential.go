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

package probe

import (
	"context"

	"go.uber.org/zap"

	"github.com/your-org/tenant-throttle-probe/internal/config"
	"github.com/your-org/tenant-throttle-probe/internal/gateway"
)

// TenantOutcome pairs a tenant with the outcome of a call made on its behalf
type TenantOutcome struct {
	Tenant  config.Tenant
	Outcome gateway.Outcome
}

// Sequential calls the gateway once per tenant, in the given order, pausing
// for the sweep delay between calls. Each result is reported as it arrives.
// A cancelled context stops the sweep early.
func (r *Runner) Sequential(ctx context.Context, tenants []config.Tenant, prompt func(config.Tenant) string) []TenantOutcome {
	results := make([]TenantOutcome, 0, len(tenants))

	for i, tenant := range tenants {
		if i > 0 {
			if err := r.sleep(ctx, r.settings.SweepDelay); err != nil {
				r.logger.Warn("Sweep interrupted", zap.Error(err), zap.Int("completed", len(results)))
				break
			}
		}

		outcome := r.chat.Chat(ctx, tenant, prompt(tenant), r.settings.SweepMaxTokens)
		r.reporter.TenantLine(tenant.Name, outcome)
		results = append(results, TenantOutcome{Tenant: tenant, Outcome: outcome})
	}

	return results
}
