package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const appName = "dropcheck"

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Browser BrowserConfig `mapstructure:"browser"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type APIConfig struct {
	Host      string `mapstructure:"host"`
	Timeout   int    `mapstructure:"timeout"`
	UserAgent string `mapstructure:"user_agent"`
}

type BrowserConfig struct {
	// Cookies names the browser whose cookies are sent with page fetches.
	Cookies string `mapstructure:"cookies"`
}

type FetchConfig struct {
	JavaScript      string `mapstructure:"javascript"`
	Timeout         int    `mapstructure:"timeout"`
	UserAgent       string `mapstructure:"user_agent"`
	BrowserAgent    string `mapstructure:"browser_agent"`
	FollowRedirects bool   `mapstructure:"follow_redirects"`
	MaxRedirects    int    `mapstructure:"max_redirects"`
	WaitForSelector string `mapstructure:"wait_for_selector"`
}

type OutputConfig struct {
	Format          string   `mapstructure:"format"`
	IncludeMetadata bool     `mapstructure:"include_metadata"`
	MetadataFields  []string `mapstructure:"metadata_fields"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
	// FetchPages lets /api/check load the page itself when no HTML is posted.
	FetchPages     bool     `mapstructure:"fetch_pages"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Default() *Config {
	return &Config{
		API: APIConfig{
			Host:    "https://j4cswgw8gwk8wcs4o4ww0oks.fonz.pt",
			Timeout: 30,
		},
		Browser: BrowserConfig{
			Cookies: "none",
		},
		Fetch: FetchConfig{
			JavaScript:      "never",
			Timeout:         30,
			BrowserAgent:    "auto",
			FollowRedirects: true,
			MaxRedirects:    10,
		},
		Output: OutputConfig{
			Format:          "text",
			IncludeMetadata: false,
			MetadataFields:  []string{"site", "url", "image", "description"},
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8787",
			AllowedOrigins: []string{"chrome-extension://*", "moz-extension://*"},
			RateLimit:      2,
			MaxBodyBytes:   4 << 20,
			FetchPages:     false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/dropcheck/config.toml.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error finding home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, appName, "config.toml"), nil
}

// Load reads configuration from configFile (or the default location), a .env
// file in the working directory, and DROPCHECK_* environment variables.
// A missing config file is not an error.
func Load(configFile string) (*Config, error) {
	return load(viper.New(), configFile)
}

func load(v *viper.Viper, configFile string) (*Config, error) {
	cfg := Default()

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("error reading .env: %w", err)
	}

	setDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigType("toml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("DROPCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configFile != "" && errors.Is(err, fs.ErrNotExist)) {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, cfg.Validate()
}

// setDefaults registers every key so AutomaticEnv can override keys that are
// absent from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.host", cfg.API.Host)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.user_agent", cfg.API.UserAgent)
	v.SetDefault("browser.cookies", cfg.Browser.Cookies)
	v.SetDefault("fetch.javascript", cfg.Fetch.JavaScript)
	v.SetDefault("fetch.timeout", cfg.Fetch.Timeout)
	v.SetDefault("fetch.user_agent", cfg.Fetch.UserAgent)
	v.SetDefault("fetch.browser_agent", cfg.Fetch.BrowserAgent)
	v.SetDefault("fetch.follow_redirects", cfg.Fetch.FollowRedirects)
	v.SetDefault("fetch.max_redirects", cfg.Fetch.MaxRedirects)
	v.SetDefault("fetch.wait_for_selector", cfg.Fetch.WaitForSelector)
	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.include_metadata", cfg.Output.IncludeMetadata)
	v.SetDefault("output.metadata_fields", cfg.Output.MetadataFields)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("server.rate_limit", cfg.Server.RateLimit)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)
	v.SetDefault("server.fetch_pages", cfg.Server.FetchPages)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// Validate rejects values the rest of the program cannot act on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.Host) == "" {
		return fmt.Errorf("api.host must not be empty")
	}
	if !strings.HasPrefix(c.API.Host, "http://") && !strings.HasPrefix(c.API.Host, "https://") {
		return fmt.Errorf("api.host must be an http(s) URL, got %q", c.API.Host)
	}
	if c.API.Timeout < 0 || c.Fetch.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	switch c.Output.Format {
	case "text", "markdown", "json":
	default:
		return fmt.Errorf("output.format must be text, markdown or json, got %q", c.Output.Format)
	}
	switch strings.ToLower(c.Fetch.JavaScript) {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("fetch.javascript must be auto, always or never, got %q", c.Fetch.JavaScript)
	}
	return nil
}

func (c *Config) CreateExampleConfig(configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	exampleContent := `# dropcheck configuration file

[api]
# Price-comparison API queried with the product title
host = "https://j4cswgw8gwk8wcs4o4ww0oks.fonz.pt"
timeout = 30              # seconds
user_agent = ""           # sent to the API (empty = Go default)

[browser]
# Send your own browser cookies with page fetches so the page shows
# your region and currency
cookies = "none"          # none, auto, chrome, firefox, safari, zen

[fetch]
javascript = "never"      # auto, always, never (always/auto need Chrome)
timeout = 30              # seconds
user_agent = ""           # custom user agent (empty = rotate browser_agent)
browser_agent = "auto"    # auto, chrome, firefox, safari, edge
follow_redirects = true
max_redirects = 10
wait_for_selector = ""    # CSS selector to wait for when rendering with Chrome

[output]
format = "text"           # text, markdown, json
include_metadata = false
metadata_fields = ["site", "url", "image", "description"]  # also: excerpt, byline

[server]
addr = "127.0.0.1:8787"
allowed_origins = ["chrome-extension://*", "moz-extension://*"]
rate_limit = 2            # requests per second per client
max_body_bytes = 4194304  # largest page HTML accepted by /api/check
# Let /api/check fetch the page itself when the request carries no HTML.
# Any client that can reach the server can then make it request arbitrary
# http(s) URLs (through Chrome when fetch.javascript allows it), so only
# enable this on a loopback address.
fetch_pages = false

[logging]
level = "info"            # debug, info, warn, error
format = "text"           # text, json
`

	return os.WriteFile(configPath, []byte(exampleContent), 0644)
}
