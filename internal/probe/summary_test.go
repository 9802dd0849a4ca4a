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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/tenant-throttle-probe/internal/gateway"
)

func TestSummarize(t *testing.T) {
	outcomes := []gateway.Outcome{
		okOutcome(100),
		throttledOutcome(),
		okOutcome(250),
		errorOutcome(http.StatusInternalServerError),
		{Status: gateway.StatusError},
		throttledOutcome(),
	}

	s := Summarize(outcomes...)
	assert.Equal(t, Summary{Succeeded: 2, Throttled: 2, Failed: 2, TotalTokens: 350}, s)
	assert.Equal(t, len(outcomes), s.Total())

	reversed := make([]gateway.Outcome, len(outcomes))
	for i, o := range outcomes {
		reversed[len(outcomes)-1-i] = o
	}
	assert.Equal(t, s, Summarize(reversed...), "order does not matter")

	assert.Equal(t, Summary{}, Summarize())
}

func TestSummarizeResults(t *testing.T) {
	burst := []IndexedOutcome{{Index: 1, Outcome: okOutcome(10)}, {Index: 2, Outcome: okOutcome(20)}}
	escalation := []IndexedOutcome{{Index: 3, Outcome: okOutcome(30)}, {Index: 4, Outcome: throttledOutcome()}}

	assert.Equal(t, Summary{Succeeded: 3, Throttled: 1, TotalTokens: 60}, SummarizeResults(burst, escalation))
	assert.Equal(t, Summary{Succeeded: 2, TotalTokens: 30}, BurstResultSet{Results: burst}.Summary())
}
