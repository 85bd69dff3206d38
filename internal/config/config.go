package config

// Config represents the main agentrelay configuration
type Config struct {
	// Server holds the HTTP transport configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Database holds the session store configuration
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// Providers holds model provider credentials
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`

	// Defaults holds per-session defaults applied at creation
	Defaults DefaultsConfig `json:"defaults" mapstructure:"defaults"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Maintenance configuration
	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// DatabaseConfig holds session store settings
type DatabaseConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// ProvidersConfig holds model provider settings
type ProvidersConfig struct {
	Default   string         `json:"default" mapstructure:"default"`
	Anthropic ProviderConfig `json:"anthropic" mapstructure:"anthropic"`
	OpenAI    ProviderConfig `json:"openai" mapstructure:"openai"`
}

// ProviderConfig holds one provider's credentials
type ProviderConfig struct {
	APIKey string `json:"api_key" mapstructure:"api_key"`
}

// DefaultsConfig holds session creation defaults
type DefaultsConfig struct {
	Model       string `json:"model" mapstructure:"model"`
	ToolVersion string `json:"tool_version" mapstructure:"tool_version"`
	MaxTokens   int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// GatewayConfig holds websocket gateway settings
type GatewayConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MaintenanceConfig holds scheduled job settings
type MaintenanceConfig struct {
	// Schedule is a cron expression for periodic store maintenance
	Schedule string `json:"schedule" mapstructure:"schedule"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Providers: ProvidersConfig{
			Default: "anthropic",
		},
		Defaults: DefaultsConfig{
			Model:       "claude-sonnet-4-20250514",
			ToolVersion: "computer_use_20250124",
			MaxTokens:   4096,
		},
		Gateway: GatewayConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
		Maintenance: MaintenanceConfig{
			Schedule: "0 */6 * * *",
		},
	}
}
