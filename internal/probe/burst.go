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
	"golang.org/x/sync/errgroup"

	"github.com/your-org/tenant-throttle-probe/internal/config"
	"github.com/your-org/tenant-throttle-probe/internal/gateway"
)

// IndexedOutcome is an outcome tagged with its request number. The index is
// for reporting only and says nothing about completion order.
type IndexedOutcome struct {
	Index   int
	Outcome gateway.Outcome
}

// BurstResultSet holds exactly one outcome per dispatched burst call
type BurstResultSet struct {
	Results   []IndexedOutcome
	Throttled bool
}

// Summary aggregates the burst outcomes
func (s BurstResultSet) Summary() Summary {
	return SummarizeResults(s.Results)
}

// Burst fires count calls for the tenant at once and collects the outcomes as
// they complete. The worker pool is as wide as the batch so every call starts
// immediately; Burst returns only after all of them have finished.
func (r *Runner) Burst(ctx context.Context, tenant config.Tenant, count, maxTokens int) BurstResultSet {
	if count <= 0 {
		return BurstResultSet{}
	}

	completed := make(chan IndexedOutcome, count)

	var g errgroup.Group
	g.SetLimit(count)

	for i := 1; i <= count; i++ {
		i := i
		g.Go(func() error {
			completed <- IndexedOutcome{
				Index:   i,
				Outcome: r.chat.Chat(ctx, tenant, burstPrompt(i), maxTokens),
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(completed)
	}()

	set := BurstResultSet{Results: make([]IndexedOutcome, 0, count)}
	for res := range completed {
		r.reporter.BurstLine(res)
		set.Results = append(set.Results, res)
		if res.Outcome.Throttled() {
			set.Throttled = true
		}
	}

	r.logger.Debug("Burst completed",
		zap.String("tenant", tenant.Name),
		zap.Int("dispatched", count),
		zap.Int("collected", len(set.Results)),
		zap.Bool("throttled", set.Throttled),
	)

	return set
}

func burstPrompt(i int) string {
	return fmt.Sprintf("Request %d: Write a comprehensive essay about artificial intelligence covering machine learning, "+
		"deep learning, neural networks, NLP, computer vision, reinforcement learning, generative AI, and transformers.", i)
}
