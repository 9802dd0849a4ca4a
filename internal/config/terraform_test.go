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

package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTerraform answers terraform output commands from a fixed map
type fakeTerraform struct {
	mu      sync.Mutex
	outputs map[string]string
	fail    map[string]error
	calls   []string
}

func (f *fakeTerraform) run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, fmt.Sprintf("%s:%s %s", dir, name, strings.Join(args, " ")))

	output := args[len(args)-1]
	if err, ok := f.fail[output]; ok {
		return nil, err
	}
	value, ok := f.outputs[output]
	if !ok {
		return nil, fmt.Errorf("output %q not found", output)
	}
	return []byte(value), nil
}

func labOutputs() map[string]string {
	return map[string]string{
		OutputGatewayURL:      `"https://apim-lab.azure-api.net"`,
		OutputSubscriptionKey: `"default-key"`,
		OutputTenantKeys: `{
			"fabrikam": {"display_name": "Fabrikam", "primary_key": "fab-key"},
			"contoso":  {"display_name": "Contoso", "primary_key": "con-key"},
			"adatum":   {"display_name": "", "primary_key": "ada-key"}
		}`,
	}
}

func TestTerraformOutputsApply(t *testing.T) {
	tf := &fakeTerraform{outputs: labOutputs()}
	outputs := &TerraformOutputs{Dir: "infra", Binary: "tofu", Run: tf.run}

	cfg := &Config{Probe: ProbeConfig{BaselineTenant: DefaultBaselineTenant}}
	require.NoError(t, outputs.Apply(context.Background(), cfg))

	assert.Equal(t, "https://apim-lab.azure-api.net", cfg.Gateway.URL)
	assert.Equal(t, []Tenant{
		{Name: "Default (Lab)", Key: "default-key", TPM: "default", Quota: "default"},
		{Name: "adatum", Key: "ada-key", TPM: "adatum", Quota: "adatum"},
		{Name: "Contoso", Key: "con-key", TPM: "contoso", Quota: "contoso"},
		{Name: "Fabrikam", Key: "fab-key", TPM: "fabrikam", Quota: "fabrikam"},
	}, cfg.Tenants)

	assert.Equal(t, []string{
		"infra:tofu output -json apim_gateway_url",
		"infra:tofu output -json apim_subscription_key",
		"infra:tofu output -json apim_tenant_subscription_keys",
	}, tf.calls)
}

func TestTerraformOutputsErrors(t *testing.T) {
	t.Run("command failure", func(t *testing.T) {
		tf := &fakeTerraform{
			outputs: labOutputs(),
			fail:    map[string]error{OutputSubscriptionKey: errors.New("exit status 1: No outputs found")},
		}
		err := (&TerraformOutputs{Run: tf.run}).Apply(context.Background(), &Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "apim_subscription_key")
		assert.Contains(t, err.Error(), "No outputs found")
	})

	t.Run("null output", func(t *testing.T) {
		outputs := labOutputs()
		outputs[OutputGatewayURL] = "null\n"
		tf := &fakeTerraform{outputs: outputs}

		err := (&TerraformOutputs{Run: tf.run}).Apply(context.Background(), &Config{})
		assert.ErrorIs(t, err, ErrMissingRequiredField)
	})

	t.Run("malformed json", func(t *testing.T) {
		outputs := labOutputs()
		outputs[OutputTenantKeys] = "{not json"
		tf := &fakeTerraform{outputs: outputs}

		err := (&TerraformOutputs{Run: tf.run}).Apply(context.Background(), &Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode terraform output")
	})
}

func TestDefaultResolverTerraformSource(t *testing.T) {
	clearEnv(t)

	tf := &fakeTerraform{outputs: labOutputs()}
	resolver := NewResolver(LoadOptions{ConfigPath: writeConfig(t, "terraform:\n  dir: ./infra\n")})
	resolver.Runner = tf.run

	cfg, err := resolver.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceTerraform, cfg.Source)
	assert.Equal(t, "https://apim-lab.azure-api.net", cfg.Gateway.URL)
	assert.Len(t, cfg.Tenants, 4)
	assert.Equal(t, DefaultBaselineTenant, cfg.Tenants[0].Name)
	require.NotEmpty(t, tf.calls)
	assert.True(t, strings.HasPrefix(tf.calls[0], "./infra:terraform "))
}

func TestDefaultResolverFileSourceNeverRunsTerraform(t *testing.T) {
	clearEnv(t)

	tf := &fakeTerraform{}
	resolver := NewResolver(LoadOptions{ConfigPath: writeConfig(t, fileConfig)})
	resolver.Runner = tf.run

	cfg, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Len(t, cfg.Tenants, 3)
	assert.Empty(t, tf.calls)
}

func TestDefaultResolverFailures(t *testing.T) {
	clearEnv(t)

	t.Run("terraform unavailable", func(t *testing.T) {
		tf := &fakeTerraform{fail: map[string]error{OutputGatewayURL: errors.New("executable file not found")}}
		resolver := NewResolver(LoadOptions{ConfigPath: writeConfig(t, "{}\n")})
		resolver.Runner = tf.run

		_, err := resolver.Resolve(context.Background())
		assert.ErrorIs(t, err, ErrResolve)
	})

	t.Run("file source without tenants", func(t *testing.T) {
		resolver := NewResolver(LoadOptions{ConfigPath: writeConfig(t, "source: file\ngateway:\n  url: https://gw\n")})

		_, err := resolver.Resolve(context.Background())
		assert.ErrorIs(t, err, ErrResolve)
		assert.ErrorIs(t, err, ErrInvalidConfigValue)
	})

	t.Run("missing config file", func(t *testing.T) {
		resolver := NewResolver(LoadOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})

		_, err := resolver.Resolve(context.Background())
		assert.ErrorIs(t, err, ErrResolve)
	})
}

func TestStaticResolver(t *testing.T) {
	cfg := &Config{
		Source:  SourceFile,
		Gateway: GatewayConfig{URL: "https://gw", Timeout: 1},
		Tenants: []Tenant{{Name: "A", Key: "k"}},
		Probe:   ProbeConfig{BurstCount: 1, BurstMaxTokens: 1, SweepMaxTokens: 1},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}

	got, err := Static(cfg).Resolve(context.Background())
	require.NoError(t, err)
	assert.Same(t, cfg, got)

	_, err = Static(&Config{}).Resolve(context.Background())
	assert.ErrorIs(t, err, ErrResolve)
}

func TestExecRunner(t *testing.T) {
	_, err := ExecRunner(context.Background(), t.TempDir(), "definitely-not-a-terraform-binary", "output")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely-not-a-terraform-binary output")
}
