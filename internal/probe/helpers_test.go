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
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/tenant-throttle-probe/internal/config"
	"github.com/your-org/tenant-throttle-probe/internal/gateway"
)

var (
	tenantDefault  = config.Tenant{Name: "Default (Lab)", Key: "default-key", TPM: "default", Quota: "default"}
	tenantFabrikam = config.Tenant{Name: "Fabrikam", Key: "fabrikam-key", TPM: "fabrikam", Quota: "fabrikam"}
	tenantContoso  = config.Tenant{Name: "Contoso", Key: "contoso-key", TPM: "contoso", Quota: "contoso"}

	labTenants = []config.Tenant{tenantDefault, tenantFabrikam, tenantContoso}
)

func okOutcome(tokens int) gateway.Outcome {
	return gateway.Outcome{Status: gateway.StatusSuccess, HTTPStatus: http.StatusOK, TotalTokens: tokens, Preview: "fine"}
}

func throttledOutcome() gateway.Outcome {
	return gateway.Outcome{
		Status:       gateway.StatusThrottled,
		HTTPStatus:   http.StatusTooManyRequests,
		ErrorPayload: map[string]interface{}{"statusCode": float64(429), "message": "Token limit is exceeded."},
	}
}

func errorOutcome(status int) gateway.Outcome {
	return gateway.Outcome{Status: gateway.StatusError, HTTPStatus: status, ErrorPayload: "boom"}
}

type chatCall struct {
	Tenant    string
	Prompt    string
	MaxTokens int
}

// fakeChatter scripts outcomes and records every call it receives
type fakeChatter struct {
	mu      sync.Mutex
	calls   []chatCall
	respond func(tenant config.Tenant, prompt string) gateway.Outcome
}

func newFakeChatter(respond func(tenant config.Tenant, prompt string) gateway.Outcome) *fakeChatter {
	if respond == nil {
		respond = func(config.Tenant, string) gateway.Outcome { return okOutcome(10) }
	}
	return &fakeChatter{respond: respond}
}

func (f *fakeChatter) Chat(_ context.Context, tenant config.Tenant, prompt string, maxTokens int) gateway.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, chatCall{Tenant: tenant.Name, Prompt: prompt, MaxTokens: maxTokens})
	f.mu.Unlock()

	return f.respond(tenant, prompt)
}

func (f *fakeChatter) Calls() []chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]chatCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// MockChatter is a testify mock of Chatter
type MockChatter struct {
	mock.Mock
}

func (m *MockChatter) Chat(ctx context.Context, tenant config.Tenant, prompt string, maxTokens int) gateway.Outcome {
	args := m.Called(ctx, tenant, prompt, maxTokens)
	return args.Get(0).(gateway.Outcome)
}

// recordingSleeper captures requested pauses without waiting
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func defaultSettings() Settings {
	return Settings{
		BaselineTenant:     config.DefaultBaselineTenant,
		BurstCount:         10,
		BurstMaxTokens:     800,
		SweepMaxTokens:     100,
		SweepDelay:         300 * time.Millisecond,
		EscalationAttempts: 10,
	}
}

func newTestRunner(t *testing.T, chat Chatter, out *bytes.Buffer, opts ...Option) *Runner {
	t.Helper()

	sleeper := &recordingSleeper{}
	opts = append([]Option{WithSleeper(sleeper.sleep)}, opts...)
	return NewRunner(chat, labTenants, defaultSettings(), NewReporter(out), zaptest.NewLogger(t), opts...)
}

// requestIndex extracts N from "Request N: ..." or "Essay N ..." prompts
func requestIndex(prompt string) int {
	var i int
	if _, err := fmt.Sscanf(prompt, "Request %d:", &i); err == nil {
		return i
	}
	if _, err := fmt.Sscanf(prompt, "Essay %d", &i); err == nil {
		return i
	}
	return -1
}
