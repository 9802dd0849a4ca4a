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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

const (
	// SourceFile takes the gateway and tenants from the config file and environment
	SourceFile = "file"
	// SourceTerraform takes the gateway and tenants from Terraform outputs
	SourceTerraform = "terraform"

	// DefaultBaselineTenant is the display name of the lab's default subscription
	DefaultBaselineTenant = "Default (Lab)"

	envPrefix = "TOKENLIMITS"
)

// Config represents the complete application configuration
type Config struct {
	Source    string          `mapstructure:"source"`
	Terraform TerraformConfig `mapstructure:"terraform"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Tenants   []Tenant        `mapstructure:"tenants"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// TerraformConfig locates the Terraform working directory holding the lab state
type TerraformConfig struct {
	Dir    string `mapstructure:"dir"`
	Binary string `mapstructure:"binary"`
}

// GatewayConfig describes the API Management endpoint under test
type GatewayConfig struct {
	URL        string        `mapstructure:"url"`
	Deployment string        `mapstructure:"deployment"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Tenant is one subscription on the gateway. Tenants are read-only once loaded.
type Tenant struct {
	Name  string `mapstructure:"name"`
	Key   string `mapstructure:"key"`
	TPM   string `mapstructure:"tpm"`
	Quota string `mapstructure:"quota"`
}

// ProbeConfig holds the policy knobs of a probe run
type ProbeConfig struct {
	BaselineTenant     string        `mapstructure:"baseline_tenant"`
	BurstCount         int           `mapstructure:"burst_count"`
	BurstMaxTokens     int           `mapstructure:"burst_max_tokens"`
	SweepMaxTokens     int           `mapstructure:"sweep_max_tokens"`
	SweepDelay         time.Duration `mapstructure:"sweep_delay"`
	EscalationAttempts int           `mapstructure:"escalation_attempts"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	EnvFile          string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	if err := v.ReadInConfig(); err != nil {
		// Terraform-sourced runs need no config file at all
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Source = strings.ToLower(strings.TrimSpace(config.Source))

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// loadEnvFile loads a dotenv file into the process environment. Values that
// are already set win. A missing default .env is not an error.
func loadEnvFile(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("source", SourceTerraform)

	v.SetDefault("terraform.dir", ".")
	v.SetDefault("terraform.binary", "terraform")

	v.SetDefault("gateway.deployment", "gpt-4o")
	v.SetDefault("gateway.api_version", "2024-10-21")
	v.SetDefault("gateway.timeout", 60*time.Second)

	v.SetDefault("probe.baseline_tenant", DefaultBaselineTenant)
	v.SetDefault("probe.burst_count", 10)
	v.SetDefault("probe.burst_max_tokens", 800)
	v.SetDefault("probe.sweep_max_tokens", 100)
	v.SetDefault("probe.sweep_delay", 300*time.Millisecond)
	v.SetDefault("probe.escalation_attempts", 10)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	v.SetConfigName("tokenlimits")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"APIM_GATEWAY_URL": "gateway.url",
		"APIM_DEPLOYMENT":  "gateway.deployment",
		"APIM_API_VERSION": "gateway.api_version",
		"TERRAFORM_DIR":    "terraform.dir",
		"LOG_LEVEL":        "logging.level",
		"LOG_FORMAT":       "logging.format",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// Validate checks a fully resolved configuration
func (c *Config) Validate() error {
	return validateConfig(c)
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errors []ValidationError

	validSources := []string{SourceFile, SourceTerraform}
	if !contains(validSources, config.Source) {
		errors = append(errors, ValidationError{
			Field:   "source",
			Message: fmt.Sprintf("source must be one of: %s", strings.Join(validSources, ", ")),
		})
	}

	if config.Gateway.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "gateway.url",
			Message: "gateway URL is required. Set via config file, APIM_GATEWAY_URL or Terraform output apim_gateway_url",
		})
	}

	if config.Gateway.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "gateway.timeout",
			Message: "timeout must be greater than 0",
		})
	}

	if len(config.Tenants) == 0 {
		errors = append(errors, ValidationError{
			Field:   "tenants",
			Message: "at least one tenant subscription is required",
		})
	}

	seen := make(map[string]bool, len(config.Tenants))
	for i, tenant := range config.Tenants {
		field := fmt.Sprintf("tenants[%d]", i)
		if tenant.Name == "" {
			errors = append(errors, ValidationError{Field: field + ".name", Message: "tenant name is required"})
		} else if seen[tenant.Name] {
			errors = append(errors, ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate tenant name %q", tenant.Name)})
		}
		seen[tenant.Name] = true

		if tenant.Key == "" {
			errors = append(errors, ValidationError{Field: field + ".key", Message: fmt.Sprintf("subscription key is required for tenant %q", tenant.Name)})
		}
	}

	if config.Probe.BurstCount <= 0 {
		errors = append(errors, ValidationError{
			Field:   "probe.burst_count",
			Message: "burst_count must be greater than 0",
		})
	}

	if config.Probe.BurstMaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "probe.burst_max_tokens",
			Message: "burst_max_tokens must be greater than 0",
		})
	}

	if config.Probe.SweepMaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "probe.sweep_max_tokens",
			Message: "sweep_max_tokens must be greater than 0",
		})
	}

	if config.Probe.SweepDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "probe.sweep_delay",
			Message: "sweep_delay must not be negative",
		})
	}

	if config.Probe.EscalationAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "probe.escalation_attempts",
			Message: "escalation_attempts must be greater than or equal to 0",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if len(errors) > 0 {
		var errorMessages []string
		for _, err := range errors {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("%w:\n%s", ErrInvalidConfigValue, strings.Join(errorMessages, "\n"))
	}

	return nil
}

// TenantNames returns the tenant display names in configuration order
func (c *Config) TenantNames() []string {
	names := make([]string, 0, len(c.Tenants))
	for _, tenant := range c.Tenants {
		names = append(names, tenant.Name)
	}
	return names
}

// MaskSensitiveValues returns a copy of the config with subscription keys masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	masked.Tenants = make([]Tenant, len(c.Tenants))
	for i, tenant := range c.Tenants {
		if tenant.Key != "" {
			tenant.Key = maskValue(tenant.Key)
		}
		masked.Tenants[i] = tenant
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 4 characters
func maskValue(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", len(value)-4)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
