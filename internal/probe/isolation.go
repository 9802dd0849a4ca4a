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

	"github.com/your-org/tenant-throttle-probe/internal/config"
	"github.com/your-org/tenant-throttle-probe/internal/gateway"
)

const (
	isolationPrompt    = "Say hello in German."
	isolationMaxTokens = 100
)

// VerifyIsolation sends one call for a tenant other than the burst target.
// Success shows the burst did not spill over; failure is only reported.
func (r *Runner) VerifyIsolation(ctx context.Context, tenant config.Tenant) gateway.Outcome {
	maxTokens := r.settings.SweepMaxTokens
	if maxTokens <= 0 {
		maxTokens = isolationMaxTokens
	}

	outcome := r.chat.Chat(ctx, tenant, isolationPrompt, maxTokens)
	r.reporter.TenantLine(tenant.Name, outcome)
	return outcome
}
