package monitor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level dropwatch configuration, loaded from YAML with
// environment overrides for secrets. The monitor consumes it as already
// validated: Validate runs at load time, not per component.
type Config struct {
	// BaseURL is the app's date-page prefix, e.g.
	// "https://city.example.com/app". Pages live at BaseURL/YYYY-MM-DD.
	BaseURL string `yaml:"base_url"`

	// SignInURL defaults to BaseURL: the app redirects unauthenticated
	// visitors to its login form in place.
	SignInURL string `yaml:"signin_url"`

	LookaheadDays int `yaml:"lookahead_days"`

	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	SlackWebhookURL string `yaml:"slack_webhook_url"`

	StateDB     string `yaml:"state_db"`
	ArtifactDir string `yaml:"artifact_dir"`
	SessionFile string `yaml:"session_file"`

	Browser BrowserConfig   `yaml:"browser"`
	Detect  DetectionConfig `yaml:"detection"`

	// Summary reports current availability for every date, skipping
	// diffing entirely.
	Summary bool `yaml:"summary"`
	// Heartbeat sends a no-change message instead of staying silent.
	Heartbeat bool `yaml:"heartbeat"`
}

// BrowserConfig controls Chrome. Timeouts are milliseconds in YAML.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Headless         *bool    `yaml:"headless"`
	NavTimeoutMS     int64    `yaml:"nav_timeout_ms"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// NavTimeout returns the navigation timeout as a duration.
func (b BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutMS) * time.Millisecond
}

// DetectionConfig tunes the extraction strategy chain.
type DetectionConfig struct {
	StateAttr     string   `yaml:"state_attr"`
	EmptyPhrase   string   `yaml:"empty_phrase"`
	CardSelectors []string `yaml:"card_selectors"`
	ActionPhrases []string `yaml:"action_phrases"`
	MinCount      int      `yaml:"min_count"`
}

// LoadConfigFile reads YAML config, applies environment overrides and
// defaults, and validates.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("monitor: parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets stay out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DROPWATCH_EMAIL"); v != "" {
		c.Email = v
	}
	if v := os.Getenv("DROPWATCH_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.SlackWebhookURL = v
	}
	if v := os.Getenv("DROPWATCH_BASE_URL"); v != "" {
		c.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.SignInURL == "" {
		c.SignInURL = c.BaseURL
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = 14
	}
	if c.StateDB == "" {
		c.StateDB = "dropwatch.db"
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = "artifacts"
	}
	if c.SessionFile == "" {
		c.SessionFile = ".dropwatch-session.json"
	}
	if c.Browser.Headless == nil {
		t := true
		c.Browser.Headless = &t
	}
	if c.Browser.NavTimeoutMS <= 0 {
		c.Browser.NavTimeoutMS = 25_000
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
}

// Validate rejects configs the run cannot work with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("monitor: base_url is required")
	}
	if c.Email == "" || c.Password == "" {
		return fmt.Errorf("monitor: credentials are required (email/password or DROPWATCH_EMAIL/DROPWATCH_PASSWORD)")
	}
	return nil
}
