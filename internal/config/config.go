package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/mesh-workbench/internal/models"
)

const (
	DefaultListen          = ":8080"
	DefaultPageSize        = 50
	DefaultRefreshInterval = 10 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
)

// ConnectionConfig represents a pre-configured control plane in the config file.
type ConnectionConfig struct {
	Name      string  `yaml:"name"`
	URL       string  `yaml:"url"`
	Token     string  `yaml:"token"`
	Username  string  `yaml:"username"`
	Password  string  `yaml:"password"`
	Insecure  bool    `yaml:"insecure"`
	CACert    string  `yaml:"caCert"`
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// Connection converts the entry into a connection model.
func (cc ConnectionConfig) Connection() (*models.Connection, error) {
	conn := &models.Connection{
		Name:      cc.Name,
		Token:     cc.Token,
		Username:  cc.Username,
		Password:  cc.Password,
		Insecure:  cc.Insecure,
		CACert:    cc.CACert,
		RateLimit: cc.RateLimit,
		RateBurst: cc.RateBurst,
	}
	if err := conn.SetURL(cc.URL); err != nil {
		return nil, err
	}
	return conn, nil
}

// EnvConnection is a control plane given through the environment.
type EnvConnection struct {
	URL      string `env:"KUMA_CP_URL" env-description:"Control plane API URL added as a connection"`
	Token    string `env:"KUMA_CP_TOKEN" env-description:"User token for KUMA_CP_URL"`
	Insecure bool   `env:"KUMA_CP_INSECURE" env-description:"Skip TLS verification for KUMA_CP_URL"`
}

// Config holds all configuration (CLI flags + environment + config file).
type Config struct {
	Listen          string             `yaml:"listen" env:"WORKBENCH_LISTEN" env-description:"HTTP listen address"`
	PageSize        int                `yaml:"pageSize" env:"WORKBENCH_PAGE_SIZE" env-description:"Default list page size"`
	RefreshInterval time.Duration      `yaml:"refreshInterval" env:"WORKBENCH_REFRESH_INTERVAL" env-description:"Live view refresh interval"`
	RequestTimeout  time.Duration      `yaml:"requestTimeout" env:"WORKBENCH_REQUEST_TIMEOUT" env-description:"Control plane request timeout"`
	LogPretty       bool               `yaml:"logPretty" env:"WORKBENCH_LOG_PRETTY" env-description:"Colourized logs with timestamps"`
	Verbosity       int                `yaml:"verbosity" env:"WORKBENCH_VERBOSITY" env-description:"Log verbosity"`
	Connections     []ConnectionConfig `yaml:"connections"`
	Env             EnvConnection      `yaml:"-"`
	Dev             bool               `yaml:"-"`

	// internal: path to config file (from CLI flag or WORKBENCH_CONFIG)
	configFile string
}

type bootstrap struct {
	ConfigFile string `env:"WORKBENCH_CONFIG" env-description:"Path to config file (YAML)"`
}

// Parse reads the config file, then the environment, then CLI flags.
// Later sources take precedence.
func Parse(args []string) (*Config, error) {
	c := &Config{}
	var flags Config

	fs := flag.NewFlagSet("workbench", flag.ContinueOnError)
	fs.StringVar(&c.configFile, "config", "", "Path to config file (YAML)")
	fs.StringVar(&flags.Listen, "listen", "", "HTTP listen address")
	fs.IntVar(&flags.PageSize, "page-size", 0, "Default list page size")
	fs.DurationVar(&flags.RefreshInterval, "refresh", 0, "Live view refresh interval")
	fs.DurationVar(&flags.RequestTimeout, "timeout", 0, "Control plane request timeout")
	fs.BoolVar(&flags.LogPretty, "pretty", false, "Colourized logs with timestamps")
	fs.IntVar(&flags.Verbosity, "v", 0, "Log verbosity")
	fs.BoolVar(&c.Dev, "dev", false, "Dev mode (proxy frontend to Vite dev server)")
	fs.Usage = func() { usage(fs.Output(), fs) }
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.configFile == "" {
		var boot bootstrap
		if err := cleanenv.ReadEnv(&boot); err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
		c.configFile = boot.ConfigFile
	}
	if c.configFile != "" {
		if err := c.loadFile(c.configFile); err != nil {
			return nil, err
		}
	}

	if err := cleanenv.ReadEnv(c); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	// Only flags that were set on the command line override.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			c.Listen = flags.Listen
		case "page-size":
			c.PageSize = flags.PageSize
		case "refresh":
			c.RefreshInterval = flags.RefreshInterval
		case "timeout":
			c.RequestTimeout = flags.RequestTimeout
		case "pretty":
			c.LogPretty = flags.LogPretty
		case "v":
			c.Verbosity = flags.Verbosity
		}
	})

	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadFile reads a YAML config file.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.PageSize > 1000 {
		errs = append(errs, fmt.Errorf("pageSize %d exceeds the control plane maximum of 1000", c.PageSize))
	}
	for i, cc := range c.Connections {
		if cc.URL == "" {
			errs = append(errs, fmt.Errorf("connections[%d]: url is required", i))
		}
	}
	return errors.Join(errs...)
}

// ReadEnvConnection reads the control plane given through the environment.
func ReadEnvConnection() (EnvConnection, error) {
	var env EnvConnection
	if err := cleanenv.ReadEnv(&env); err != nil {
		return env, fmt.Errorf("reading environment: %w", err)
	}
	return env, nil
}

// AllConnections returns the file connections followed by the one from the
// environment, if any.
func (c *Config) AllConnections() []ConnectionConfig {
	all := append([]ConnectionConfig(nil), c.Connections...)
	if c.Env.URL != "" {
		all = append(all, ConnectionConfig{
			URL:      c.Env.URL,
			Token:    c.Env.Token,
			Insecure: c.Env.Insecure,
		})
	}
	return all
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "Usage of %s:\n", fs.Name())
	fs.PrintDefaults()
	if env, err := cleanenv.GetDescription(&Config{}, nil); err == nil {
		fmt.Fprintf(w, "\n%s\n", env)
	}
}
