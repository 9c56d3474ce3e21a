package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the session and notification core.
type Config struct {
	// APIBaseURL is the root of the marketplace backend API.
	APIBaseURL string `mapstructure:"api_base_url"`

	// IdentityTokenURL is the identity provider's token endpoint.
	IdentityTokenURL string `mapstructure:"identity_token_url"`

	// IdentityClientID identifies this client to the identity provider.
	IdentityClientID string `mapstructure:"identity_client_id"`

	// StorePath is the file path for the persistent credential store scope.
	StorePath string `mapstructure:"store_path"`

	// RefreshInterval is the cadence of scheduled credential refreshes.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	// PollInterval is the cadence of notification polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// PollLimit caps how many unread records a single poll fetches.
	PollLimit int `mapstructure:"poll_limit"`

	// ToastCapacity bounds the number of simultaneously queued toasts.
	ToastCapacity int `mapstructure:"toast_capacity"`

	// ToastDuration is how long a toast stays up before auto-removal.
	ToastDuration time.Duration `mapstructure:"toast_duration"`

	// StaggerDelay spaces out successive toast deliveries from one poll.
	StaggerDelay time.Duration `mapstructure:"stagger_delay"`

	// MarkReadDelay is the pause before a shown toast is marked as read.
	MarkReadDelay time.Duration `mapstructure:"mark_read_delay"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		APIBaseURL:      "https://api.servio.app",
		RefreshInterval: 50 * time.Minute,
		PollInterval:    30 * time.Second,
		PollLimit:       10,
		ToastCapacity:   5,
		ToastDuration:   5 * time.Second,
		StaggerDelay:    500 * time.Millisecond,
		MarkReadDelay:   time.Second,
	}
}

// Load reads configuration from a YAML file using Viper. A missing file is
// not an error; defaults are returned.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	def := Default()
	v.SetDefault("api_base_url", def.APIBaseURL)
	v.SetDefault("refresh_interval", def.RefreshInterval)
	v.SetDefault("poll_interval", def.PollInterval)
	v.SetDefault("poll_limit", def.PollLimit)
	v.SetDefault("toast_capacity", def.ToastCapacity)
	v.SetDefault("toast_duration", def.ToastDuration)
	v.SetDefault("stagger_delay", def.StaggerDelay)
	v.SetDefault("mark_read_delay", def.MarkReadDelay)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := def
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
