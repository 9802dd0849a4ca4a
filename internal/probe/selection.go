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
	"errors"
	"fmt"
	"strings"

	"github.com/your-org/tenant-throttle-probe/internal/config"
)

var (
	// ErrNoTenants is returned when selection is attempted over an empty tenant set
	ErrNoTenants = errors.New("no tenants configured")
	// ErrNoMatchingTenant is returned when the burst override matches no tenant
	ErrNoMatchingTenant = errors.New("no subscription matching")
)

// Selection names the tenant to burst and the tenant used for the isolation check
type Selection struct {
	BurstTarget     config.Tenant
	IsolationTarget config.Tenant
}

// Select picks the burst and isolation targets. It depends only on its
// arguments, so the same tenants and override always give the same result.
//
// With an override, the burst target is the first tenant whose name contains
// it, case-insensitively. Otherwise it is the first tenant that is not the
// baseline, or the first tenant when only the baseline exists. The isolation
// target is the first tenant that is neither the burst target nor the
// baseline, falling back to the baseline.
func Select(tenants []config.Tenant, baseline, override string) (Selection, error) {
	if len(tenants) == 0 {
		return Selection{}, ErrNoTenants
	}

	var sel Selection

	if search := strings.ToLower(strings.TrimSpace(override)); search != "" {
		burst, ok := findTenant(tenants, func(t config.Tenant) bool {
			return strings.Contains(strings.ToLower(t.Name), search)
		})
		if !ok {
			return Selection{}, fmt.Errorf("%w '%s'", ErrNoMatchingTenant, search)
		}
		sel.BurstTarget = burst
	} else {
		burst, ok := findTenant(tenants, func(t config.Tenant) bool {
			return t.Name != baseline
		})
		if !ok {
			burst = tenants[0]
		}
		sel.BurstTarget = burst
	}

	isolation, ok := findTenant(tenants, func(t config.Tenant) bool {
		return t.Name != sel.BurstTarget.Name && t.Name != baseline
	})
	if !ok {
		isolation, ok = findTenant(tenants, func(t config.Tenant) bool {
			return t.Name == baseline
		})
	}
	if !ok {
		isolation = tenants[0]
	}
	sel.IsolationTarget = isolation

	return sel, nil
}

// findTenant returns the first tenant in order satisfying match
func findTenant(tenants []config.Tenant, match func(config.Tenant) bool) (config.Tenant, bool) {
	for _, tenant := range tenants {
		if match(tenant) {
			return tenant, true
		}
	}
	return config.Tenant{}, false
}
