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
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/your-org/tenant-throttle-probe/internal/config"
	"github.com/your-org/tenant-throttle-probe/internal/gateway"
)

const bannerWidth = 70

// Reporter is the single console sink for a run. Every method writes its
// complete block under one lock, so lines from parallel workers never interleave.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewReporter creates a reporter writing to out
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{out: out}
}

func (r *Reporter) write(lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range lines {
		_, _ = fmt.Fprintln(r.out, line)
	}
}

// Config prints the resolved gateway and subscription names
func (r *Reporter) Config(endpoint string, tenants []config.Tenant) {
	names := make([]string, 0, len(tenants))
	for _, t := range tenants {
		names = append(names, t.Name)
	}
	r.write(
		fmt.Sprintf("  Gateway:       %s", endpoint),
		fmt.Sprintf("  Subscriptions: %s", strings.Join(names, ", ")),
	)
}

// Phase prints a phase banner, optionally followed by detail lines
func (r *Reporter) Phase(title string, details ...string) {
	rule := strings.Repeat("=", bannerWidth)
	lines := []string{"", rule, title}
	for _, d := range details {
		lines = append(lines, "  "+d)
	}
	lines = append(lines, rule)
	r.write(lines...)
}

// TenantLine reports one sweep or isolation call
func (r *Reporter) TenantLine(name string, o gateway.Outcome) {
	if o.Succeeded() {
		r.write(fmt.Sprintf("  OK %-20s | HTTP %d | %4d tokens | %s", name, o.HTTPStatus, o.TotalTokens, o.Preview))
		return
	}
	r.write(fmt.Sprintf("  !! %-20s | HTTP %d | %s", name, o.HTTPStatus, o.ErrorMessage(gateway.DefaultMessageLength)))
}

// BurstLine reports one burst call as it completes
func (r *Reporter) BurstLine(res IndexedOutcome) {
	o := res.Outcome
	switch o.Status {
	case gateway.StatusSuccess:
		r.write(fmt.Sprintf("  Req %2d: HTTP %d | %4d tokens", res.Index, o.HTTPStatus, o.TotalTokens))
	case gateway.StatusThrottled:
		lines := []string{fmt.Sprintf("  Req %2d: HTTP 429 >>> RATE LIMITED!", res.Index)}
		if msg := o.ErrorMessage(gateway.DefaultMessageLength); msg != "" {
			lines = append(lines, "           "+msg)
		}
		r.write(lines...)
	default:
		r.write(fmt.Sprintf("  Req %2d: HTTP %d", res.Index, o.HTTPStatus))
	}
}

// EscalationLine reports one escalation call with the running token total
func (r *Reporter) EscalationLine(res IndexedOutcome, cumulative int) {
	o := res.Outcome
	switch o.Status {
	case gateway.StatusSuccess:
		r.write(fmt.Sprintf("  Req %2d: HTTP %d | %4d tokens | Cumulative: %d", res.Index, o.HTTPStatus, o.TotalTokens, cumulative))
	case gateway.StatusThrottled:
		r.write(fmt.Sprintf("  Req %2d: HTTP 429 >>> RATE LIMITED after %d total tokens!", res.Index, cumulative))
	default:
		r.write(fmt.Sprintf("  Req %2d: HTTP %d", res.Index, o.HTTPStatus))
	}
}

// Summary prints the aggregate of a phase
func (r *Reporter) Summary(s Summary) {
	r.write("", summaryLine("Summary", s))
}

// Overall prints the aggregate of the burst and escalation together
func (r *Reporter) Overall(s Summary) {
	r.write("", summaryLine("Overall", s))
}

func summaryLine(label string, s Summary) string {
	return fmt.Sprintf("  %s: %d succeeded, %d rate-limited, %d failed, %d total tokens",
		label, s.Succeeded, s.Throttled, s.Failed, s.TotalTokens)
}

// Line prints a free-form indented message
func (r *Reporter) Line(format string, args ...interface{}) {
	r.write("  " + fmt.Sprintf(format, args...))
}

// Done prints the closing line of a run
func (r *Reporter) Done() {
	r.write("", "Done!")
}
