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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Terraform output names published by the lab's APIM module
const (
	OutputGatewayURL      = "apim_gateway_url"
	OutputSubscriptionKey = "apim_subscription_key"
	OutputTenantKeys      = "apim_tenant_subscription_keys"

	baselinePolicyID = "default"
)

// CommandRunner runs an external command in dir and returns its stdout
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec, surfacing stderr on failure
func ExecRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// tenantKeyOutput is one entry of the apim_tenant_subscription_keys map
type tenantKeyOutput struct {
	DisplayName string `json:"display_name"`
	PrimaryKey  string `json:"primary_key"`
}

// TerraformOutputs reads the gateway and subscription keys from Terraform state.
// Terraform reuses the local cloud login, so no secrets live in config files.
type TerraformOutputs struct {
	Dir    string
	Binary string
	Run    CommandRunner
}

// Apply overwrites cfg's gateway URL and tenant list with Terraform outputs.
// The baseline subscription comes first, followed by tenants in slug order.
func (t *TerraformOutputs) Apply(ctx context.Context, cfg *Config) error {
	var gatewayURL string
	if err := t.output(ctx, OutputGatewayURL, &gatewayURL); err != nil {
		return err
	}

	var defaultKey string
	if err := t.output(ctx, OutputSubscriptionKey, &defaultKey); err != nil {
		return err
	}

	var tenantKeys map[string]tenantKeyOutput
	if err := t.output(ctx, OutputTenantKeys, &tenantKeys); err != nil {
		return err
	}

	baseline := cfg.Probe.BaselineTenant
	if baseline == "" {
		baseline = DefaultBaselineTenant
	}

	tenants := []Tenant{{
		Name:  baseline,
		Key:   defaultKey,
		TPM:   baselinePolicyID,
		Quota: baselinePolicyID,
	}}

	slugs := make([]string, 0, len(tenantKeys))
	for slug := range tenantKeys {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		info := tenantKeys[slug]
		name := info.DisplayName
		if name == "" {
			name = slug
		}
		tenants = append(tenants, Tenant{
			Name:  name,
			Key:   info.PrimaryKey,
			TPM:   slug,
			Quota: slug,
		})
	}

	cfg.Gateway.URL = gatewayURL
	cfg.Tenants = tenants
	return nil
}

// output decodes a single `terraform output -json <name>` value into dst
func (t *TerraformOutputs) output(ctx context.Context, name string, dst interface{}) error {
	binary := t.Binary
	if binary == "" {
		binary = "terraform"
	}

	raw, err := t.Run(ctx, t.Dir, binary, "output", "-json", name)
	if err != nil {
		return fmt.Errorf("failed to read terraform output '%s': %w", name, err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: terraform output '%s' is empty", ErrMissingRequiredField, name)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode terraform output '%s': %w", name, err)
	}
	return nil
}
