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
)

// ErrResolve marks any failure to obtain a usable configuration
var ErrResolve = errors.New("failed to resolve configuration")

// Resolver produces the gateway address and tenant set for a run
type Resolver interface {
	Resolve(ctx context.Context) (*Config, error)
}

// ResolverFunc adapts a plain function to Resolver
type ResolverFunc func(ctx context.Context) (*Config, error)

// Resolve implements Resolver
func (f ResolverFunc) Resolve(ctx context.Context) (*Config, error) {
	return f(ctx)
}

// Static returns a resolver handing out a fixed, already validated configuration
func Static(cfg *Config) Resolver {
	return ResolverFunc(func(context.Context) (*Config, error) {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResolve, err)
		}
		return cfg, nil
	})
}

// DefaultResolver loads file and environment settings, then, for the
// terraform source, fills in the gateway URL and tenants from Terraform outputs.
type DefaultResolver struct {
	Options LoadOptions
	// Runner executes terraform; nil means ExecRunner
	Runner CommandRunner
}

// NewResolver creates a resolver for the given load options
func NewResolver(opts LoadOptions) *DefaultResolver {
	return &DefaultResolver{Options: opts}
}

// Resolve implements Resolver
func (r *DefaultResolver) Resolve(ctx context.Context) (*Config, error) {
	opts := r.Options
	opts.ValidateRequired = false

	cfg, err := LoadWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolve, err)
	}

	if cfg.Source == SourceTerraform {
		runner := r.Runner
		if runner == nil {
			runner = ExecRunner
		}

		outputs := &TerraformOutputs{
			Dir:    cfg.Terraform.Dir,
			Binary: cfg.Terraform.Binary,
			Run:    runner,
		}
		if err := outputs.Apply(ctx, cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResolve, err)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolve, err)
	}

	return cfg, nil
}
