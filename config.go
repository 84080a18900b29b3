package snoochat

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/NeboLoop/snoochat-go-sdk/ratelimit"
)

// Default endpoints and client identity presented to the chat provider.
const (
	DefaultSocketBase  = "wss://sendbirdproxyk8s.chat.redditmedia.com"
	DefaultAPIBase     = "https://sendbirdproxyk8s.chat.redditmedia.com"
	DefaultAppID       = "2515BDA8-9D3A-47CF-9325-330BC37ADA13"
	DefaultUserAgent   = "Jand/3.1.0"
	DefaultSBUserAgent = "Android/c3.1.0"
)

// RateLimitConfig bounds outbound message and reaction sends.
type RateLimitConfig struct {
	Enabled  bool          `env:"ENABLED"   envDefault:"true"`
	Window   time.Duration `env:"WINDOW"    envDefault:"60s"`
	MaxSends int           `env:"MAX_SENDS" envDefault:"20"`
}

func (c RateLimitConfig) limiter() ratelimit.Config {
	return ratelimit.Config{Enabled: c.Enabled, Window: c.Window, MaxSends: c.MaxSends}
}

// Config holds everything a Client needs besides credentials. It is passed
// to NewClient and owned by that client; nothing here is process-global.
type Config struct {
	SocketBase  string `env:"SOCKET_BASE"   envDefault:"wss://sendbirdproxyk8s.chat.redditmedia.com"`
	APIBase     string `env:"API_BASE"      envDefault:"https://sendbirdproxyk8s.chat.redditmedia.com"`
	AppID       string `env:"APP_ID"        envDefault:"2515BDA8-9D3A-47CF-9325-330BC37ADA13"`
	UserAgent   string `env:"USER_AGENT"    envDefault:"Jand/3.1.0"`
	SBUserAgent string `env:"SB_USER_AGENT" envDefault:"Android/c3.1.0"`

	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`

	// HookWorkers is the number of goroutines running the hook chain. With
	// one worker frames are handled strictly in arrival order.
	HookWorkers   int `env:"HOOK_WORKERS"    envDefault:"4"`
	HookQueueSize int `env:"HOOK_QUEUE_SIZE" envDefault:"256"`

	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"15s"`
	RESTTimeout time.Duration `env:"REST_TIMEOUT" envDefault:"30s"`

	// ChannelPageLimit is the page size used when listing joined channels.
	ChannelPageLimit int `env:"CHANNEL_PAGE_LIMIT" envDefault:"100"`

	// LogFrames logs every inbound frame at debug level.
	LogFrames bool `env:"LOG_FRAMES" envDefault:"false"`

	Logger zerolog.Logger `env:"-"`
}

// DefaultConfig returns the defaults without consulting the environment.
func DefaultConfig() Config {
	return Config{
		SocketBase:  DefaultSocketBase,
		APIBase:     DefaultAPIBase,
		AppID:       DefaultAppID,
		UserAgent:   DefaultUserAgent,
		SBUserAgent: DefaultSBUserAgent,
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Window:   ratelimit.DefaultWindow,
			MaxSends: ratelimit.DefaultMaxSends,
		},
		HookWorkers:      4,
		HookQueueSize:    256,
		DialTimeout:      15 * time.Second,
		RESTTimeout:      30 * time.Second,
		ChannelPageLimit: 100,
		Logger:           zerolog.Nop(),
	}
}

// LoadConfig reads SNOOCHAT_* environment variables over the defaults.
func LoadConfig() (Config, error) {
	cfg := Config{Logger: zerolog.Nop()}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "SNOOCHAT_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings a Client cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.SocketBase == "" {
		errs = append(errs, errors.New("socket base not configured"))
	}
	if c.HookWorkers < 1 {
		errs = append(errs, fmt.Errorf("hook workers must be at least 1, got %d", c.HookWorkers))
	}
	if c.HookQueueSize < 0 {
		errs = append(errs, fmt.Errorf("hook queue size must not be negative, got %d", c.HookQueueSize))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window))
		}
		if c.RateLimit.MaxSends < 1 {
			errs = append(errs, fmt.Errorf("rate limit max sends must be at least 1, got %d", c.RateLimit.MaxSends))
		}
	}
	return errors.Join(errs...)
}

// AuthConfig holds the account endpoints used by Authenticate.
type AuthConfig struct {
	LoginBase    string        `env:"LOGIN_BASE"    envDefault:"https://old.reddit.com"`
	AccountsBase string        `env:"ACCOUNTS_BASE" envDefault:"https://accounts.reddit.com"`
	OAuthBase    string        `env:"OAUTH_BASE"    envDefault:"https://oauth.reddit.com"`
	SBase        string        `env:"S_BASE"        envDefault:"https://s.reddit.com"`
	ClientID     string        `env:"CLIENT_ID"     envDefault:"ohXpoqrZYub1kg"`
	MobileAgent  string        `env:"MOBILE_AGENT"  envDefault:"Reddit/Version 2023.21.0/Build 956283/Android 11"`
	WebAgent     string        `env:"WEB_AGENT"     envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0 Safari/537.36"`
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"30s"`
}

// DefaultAuthConfig returns the production account endpoints.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		LoginBase:    "https://old.reddit.com",
		AccountsBase: "https://accounts.reddit.com",
		OAuthBase:    "https://oauth.reddit.com",
		SBase:        "https://s.reddit.com",
		ClientID:     "ohXpoqrZYub1kg",
		MobileAgent:  "Reddit/Version 2023.21.0/Build 956283/Android 11",
		WebAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0 Safari/537.36",
		Timeout:      30 * time.Second,
	}
}

// LoadAuthConfig reads SNOOCHAT_AUTH_* environment variables over the
// defaults.
func LoadAuthConfig() (AuthConfig, error) {
	var cfg AuthConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "SNOOCHAT_AUTH_"}); err != nil {
		return AuthConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
