package config

// Config is the root configuration structure for patchwatch.
// Serialised to ~/.patchwatch/config.json. It is threaded through constructors
// at invocation time; nothing reads it as ambient process-wide state.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	AI       AIConfig       `mapstructure:"ai"       json:"ai"`
	Git      GitConfig      `mapstructure:"git"      json:"git"`
	Oracle   OracleConfig   `mapstructure:"oracle"   json:"oracle"`
	Registry RegistryConfig `mapstructure:"registry" json:"registry"`
	Scan     ScanConfig     `mapstructure:"scan"     json:"scan"`
	Gateway  GatewayConfig  `mapstructure:"gateway"  json:"gateway"`
}

// DatabaseConfig controls the scan-history storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// AIConfig controls the advisory manifest reviewer.
type AIConfig struct {
	// Provider is "openai" or empty to disable AI review.
	Provider  string `mapstructure:"provider"       json:"provider"`
	OpenAIKey string `mapstructure:"openai_api_key" json:"openai_api_key"`
	Model     string `mapstructure:"model"          json:"model"`
	// BaseURL overrides the API endpoint (useful for proxies).
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

// GitConfig holds credentials for supported git hosting platforms.
type GitConfig struct {
	GitHub GitHubConfig `mapstructure:"github" json:"github"`
	GitLab GitLabConfig `mapstructure:"gitlab" json:"gitlab"`
}

// GitHubConfig holds credentials for a GitHub instance.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host"  json:"host"`
}

// GitLabConfig holds credentials for a GitLab instance.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
}

// OracleConfig controls the vulnerability oracle client.
type OracleConfig struct {
	// BaseURL is the component-report endpoint.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// Token is an optional API credential sent as Authorization.
	Token string `mapstructure:"token" json:"token"`
	// TimeoutSeconds bounds each oracle round-trip (default 15).
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	// MinDelayMillis is the fixed minimum delay between consecutive calls,
	// keeping sequential scans under the oracle's rate limit (default 1000).
	MinDelayMillis int `mapstructure:"min_delay_millis" json:"min_delay_millis"`
}

// RegistryConfig controls ecosystem registry lookups for live secure-version
// resolution.
type RegistryConfig struct {
	// TimeoutSeconds bounds each registry round-trip (default 5).
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	// SecureVersionsPath points to an optional YAML file overriding the
	// built-in secure-version table.
	SecureVersionsPath string `mapstructure:"secure_versions_path" json:"secure_versions_path"`
}

// ScanConfig controls engine behaviour for one scan invocation.
type ScanConfig struct {
	// AutoFix writes regenerated manifests back to disk (local scans only).
	AutoFix bool `mapstructure:"auto_fix" json:"auto_fix"`
	// ForceUpdate rewrites pom.xml entries unconditionally, even when the
	// manifest already carries the table version.
	ForceUpdate bool `mapstructure:"force_update" json:"force_update"`
	// AIReview enables the advisory manifest reviewer.
	AIReview bool `mapstructure:"ai_review" json:"ai_review"`
}

// GatewayConfig controls the persistent gateway daemon.
type GatewayConfig struct {
	// Port is the localhost HTTP port the gateway listens on (default: 6480).
	Port int `mapstructure:"port" json:"port"`
	// Watchlist lists "owner/repo" entries rescanned on Schedule.
	Watchlist []string `mapstructure:"watchlist" json:"watchlist"`
	// Schedule is a cron expression for watchlist rescans (empty disables).
	Schedule string `mapstructure:"schedule" json:"schedule"`
}
