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
	"github.com/your-org/tenant-throttle-probe/internal/gateway"
)

// Summary counts outcomes per classification for one phase
type Summary struct {
	Succeeded   int
	Throttled   int
	Failed      int
	TotalTokens int
}

// Total returns the number of outcomes counted
func (s Summary) Total() int {
	return s.Succeeded + s.Throttled + s.Failed
}

// Summarize aggregates outcomes. The result does not depend on their order.
func Summarize(outcomes ...gateway.Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case gateway.StatusSuccess:
			s.Succeeded++
			s.TotalTokens += o.TotalTokens
		case gateway.StatusThrottled:
			s.Throttled++
		default:
			s.Failed++
		}
	}
	return s
}

// SummarizeResults aggregates indexed results from any number of phases
func SummarizeResults(sets ...[]IndexedOutcome) Summary {
	var outcomes []gateway.Outcome
	for _, set := range sets {
		for _, r := range set {
			outcomes = append(outcomes, r.Outcome)
		}
	}
	return Summarize(outcomes...)
}
