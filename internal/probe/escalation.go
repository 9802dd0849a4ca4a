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
	"fmt"

	"go.uber.org/zap"

	"github.com/your-org/tenant-throttle-probe/internal/config"
)

// EscalationResult describes a sequential escalation run
type EscalationResult struct {
	// Throttled is true when a 429 ended the escalation
	Throttled bool
	// Aborted is true when a non-429 failure ended the escalation
	Aborted bool
	// CumulativeTokens sums the tokens of the escalation's successful calls
	CumulativeTokens int
	// BaseTokens is what the target had already consumed before the escalation
	BaseTokens int
	// Attempts is the number of calls made
	Attempts int
	Results  []IndexedOutcome
}

// TotalTokens is the running total printed during the escalation: the base
// plus every token consumed by the escalation itself.
func (e EscalationResult) TotalTokens() int {
	return e.BaseTokens + e.CumulativeTokens
}

// Escalate sends up to maxAttempts sequential calls numbered from startIndex.
// It stops at the first 429 (throttling confirmed), at the first other
// failure (aborted) or when the attempts run out. baseTokens seeds the
// printed running total, normally with the burst's tokens.
func (r *Runner) Escalate(ctx context.Context, tenant config.Tenant, startIndex, maxAttempts, maxTokens, baseTokens int) EscalationResult {
	res := EscalationResult{BaseTokens: baseTokens}

	for i := startIndex; i < startIndex+maxAttempts; i++ {
		if ctx.Err() != nil {
			res.Aborted = true
			break
		}

		outcome := r.chat.Chat(ctx, tenant, escalationPrompt(i), maxTokens)
		res.Attempts++
		entry := IndexedOutcome{Index: i, Outcome: outcome}
		res.Results = append(res.Results, entry)

		if outcome.Succeeded() {
			res.CumulativeTokens += outcome.TotalTokens
		}
		r.reporter.EscalationLine(entry, res.TotalTokens())

		if outcome.Throttled() {
			res.Throttled = true
			break
		}
		if !outcome.Succeeded() {
			res.Aborted = true
			break
		}
	}

	r.logger.Debug("Escalation completed",
		zap.String("tenant", tenant.Name),
		zap.Int("attempts", res.Attempts),
		zap.Bool("throttled", res.Throttled),
		zap.Bool("aborted", res.Aborted),
		zap.Int("cumulative_tokens", res.CumulativeTokens),
		zap.Int("total_tokens", res.TotalTokens()),
	)

	return res
}

func escalationPrompt(i int) string {
	return fmt.Sprintf("Essay %d about cloud computing and AI.", i)
}
