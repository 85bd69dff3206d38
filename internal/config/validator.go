package config

import (
	"fmt"
	"strings"
)

var validToolVersions = map[string]bool{
	"computer_use_20241022": true,
	"computer_use_20250124": true,
}

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a loaded configuration for inconsistencies
func (v *Validator) Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", cfg.Server.Port)
	}

	switch cfg.Providers.Default {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown default provider %q", cfg.Providers.Default)
	}

	if cfg.Defaults.Model == "" {
		return fmt.Errorf("default model cannot be empty")
	}
	if !validToolVersions[cfg.Defaults.ToolVersion] {
		return fmt.Errorf("unknown tool version %q", cfg.Defaults.ToolVersion)
	}
	if cfg.Defaults.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be positive")
	}

	return nil
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}
