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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/tenant-throttle-probe/internal/config"
)

func TestSelect(t *testing.T) {
	baseline := config.DefaultBaselineTenant

	tests := []struct {
		name      string
		tenants   []config.Tenant
		override  string
		burst     string
		isolation string
	}{
		{
			name:      "first non-baseline bursts, next tenant verifies",
			tenants:   labTenants,
			burst:     "Fabrikam",
			isolation: "Contoso",
		},
		{
			name:      "isolation falls back to baseline",
			tenants:   []config.Tenant{tenantDefault, tenantFabrikam},
			burst:     "Fabrikam",
			isolation: "Default (Lab)",
		},
		{
			name:      "override is a case-insensitive substring",
			tenants:   labTenants,
			override:  "CONT",
			burst:     "Contoso",
			isolation: "Fabrikam",
		},
		{
			name:      "override may pick the baseline",
			tenants:   labTenants,
			override:  "lab",
			burst:     "Default (Lab)",
			isolation: "Fabrikam",
		},
		{
			name:      "only the baseline exists",
			tenants:   []config.Tenant{tenantDefault},
			burst:     "Default (Lab)",
			isolation: "Default (Lab)",
		},
		{
			name:      "baseline missing from the set",
			tenants:   []config.Tenant{tenantContoso},
			burst:     "Contoso",
			isolation: "Contoso",
		},
		{
			name:      "baseline listed last",
			tenants:   []config.Tenant{tenantContoso, tenantFabrikam, tenantDefault},
			burst:     "Contoso",
			isolation: "Fabrikam",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := Select(tt.tenants, baseline, tt.override)
			require.NoError(t, err)
			assert.Equal(t, tt.burst, sel.BurstTarget.Name)
			assert.Equal(t, tt.isolation, sel.IsolationTarget.Name)

			again, err := Select(tt.tenants, baseline, tt.override)
			require.NoError(t, err)
			assert.Equal(t, sel, again, "selection is deterministic")
		})
	}
}

func TestSelectErrors(t *testing.T) {
	_, err := Select(labTenants, config.DefaultBaselineTenant, "zzz")
	assert.ErrorIs(t, err, ErrNoMatchingTenant)
	assert.Contains(t, err.Error(), "'zzz'")

	_, err = Select(nil, config.DefaultBaselineTenant, "")
	assert.ErrorIs(t, err, ErrNoTenants)
}
