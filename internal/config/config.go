package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/muurk/kvmswitch/internal/kvm"
	"github.com/muurk/kvmswitch/internal/protocol"
	"github.com/muurk/kvmswitch/internal/scheduler"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "KVMSWITCH"

// ConfigEnvVar names an explicit configuration file
const ConfigEnvVar = EnvPrefix + "_CONFIG"

// DefaultPortCount is the number of inputs on the common 16-port model
const DefaultPortCount = 16

// LogConfig controls the outer layers' logging
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Config is the effective configuration of the tool
type Config struct {
	Host          string            `mapstructure:"host"`
	Port          int               `mapstructure:"port"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	ReplyOffset   int               `mapstructure:"reply_offset"`
	StrictFraming bool              `mapstructure:"strict_framing"`
	PortCount     int               `mapstructure:"port_count"`
	Labels        map[string]string `mapstructure:"labels"`
	Debounce      time.Duration     `mapstructure:"debounce"`
	RateLimit     float64           `mapstructure:"rate_limit"`
	Log           LogConfig         `mapstructure:"log"`

	// Source is the file the configuration was read from, empty if none
	Source string `mapstructure:"-"`
}

// LoadOptions selects where Load looks for configuration
type LoadOptions struct {
	// File is an explicit configuration file. It must exist.
	File string

	// Flags are command-line flags that override every other source.
	// Only flags the user actually set take effect.
	Flags *pflag.FlagSet
}

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"host":      "host",
	"port":      "port",
	"timeout":   "timeout",
	"strict":    "strict_framing",
	"ports":     "port_count",
	"log-level": "log.level",
	"log-file":  "log.file",
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host:        kvm.DefaultHost,
		Port:        kvm.DefaultPort,
		Timeout:     kvm.DefaultTimeout,
		ReplyOffset: protocol.DefaultReplyPortOffset,
		PortCount:   DefaultPortCount,
		Labels:      map[string]string{},
		Debounce:    scheduler.DefaultDelay,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("reply_offset", d.ReplyOffset)
	v.SetDefault("strict_framing", d.StrictFraming)
	v.SetDefault("port_count", d.PortCount)
	v.SetDefault("labels", map[string]string{})
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")
}

// Load builds the effective configuration. Sources, lowest precedence first:
// built-in defaults, the YAML file, KVMSWITCH_* environment variables, flags.
//
// The file is opts.File, else $KVMSWITCH_CONFIG, else the default path from
// GetConfigPath if it exists. The file is never written.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolveConfigFile(opts.File)
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveConfigFile(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(ConfigEnvVar)
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}

	path, err := GetConfigPath()
	if err != nil {
		// No home directory: run on defaults
		return "", nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("config file: %w", err)
	}
	return path, nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var err error
	if strings.TrimSpace(c.Host) == "" {
		err = multierr.Append(err, errors.New("host must not be empty"))
	}
	if c.Port < 1 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("port %d out of range 1-65535", c.Port))
	}
	if c.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.PortCount < 1 || c.PortCount > protocol.MaxPort {
		err = multierr.Append(err, fmt.Errorf("port_count %d out of range 1-%d", c.PortCount, protocol.MaxPort))
	}
	if c.Debounce < 0 {
		err = multierr.Append(err, fmt.Errorf("debounce must not be negative, got %s", c.Debounce))
	}
	if c.RateLimit < 0 {
		err = multierr.Append(err, fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit))
	}
	for key := range c.Labels {
		if n, convErr := strconv.Atoi(key); convErr != nil || protocol.ValidatePort(n) != nil {
			err = multierr.Append(err, fmt.Errorf("label key %q is not a port number", key))
		}
	}
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Label returns the user label of a port, or "Port N" if none is set
func (c *Config) Label(port int) string {
	if l, ok := c.Labels[strconv.Itoa(port)]; ok && l != "" {
		return l
	}
	return fmt.Sprintf("Port %d", port)
}

// ClientOptions returns the kvm.Client options this configuration implies
func (c *Config) ClientOptions() []kvm.Option {
	return []kvm.Option{
		kvm.WithTimeout(c.Timeout),
		kvm.WithReplyOffset(c.ReplyOffset),
		kvm.WithStrictFraming(c.StrictFraming),
	}
}

// NewClient creates a client for the configured switch
func (c *Config) NewClient() *kvm.Client {
	return kvm.NewClient(c.Host, c.Port, c.ClientOptions()...)
}

// fileView is the YAML rendering of Config, with durations as strings
type fileView struct {
	Host          string            `yaml:"host"`
	Port          int               `yaml:"port"`
	Timeout       string            `yaml:"timeout"`
	ReplyOffset   int               `yaml:"reply_offset"`
	StrictFraming bool              `yaml:"strict_framing"`
	PortCount     int               `yaml:"port_count"`
	Labels        map[string]string `yaml:"labels,omitempty"`
	Debounce      string            `yaml:"debounce"`
	RateLimit     float64           `yaml:"rate_limit,omitempty"`
	Log           struct {
		Level string `yaml:"level,omitempty"`
		File  string `yaml:"file,omitempty"`
	} `yaml:"log"`
}

// YAML renders the configuration in the same format Load reads
func (c *Config) YAML() ([]byte, error) {
	view := fileView{
		Host:          c.Host,
		Port:          c.Port,
		Timeout:       c.Timeout.String(),
		ReplyOffset:   c.ReplyOffset,
		StrictFraming: c.StrictFraming,
		PortCount:     c.PortCount,
		Labels:        c.Labels,
		Debounce:      c.Debounce.String(),
		RateLimit:     c.RateLimit,
	}
	view.Log.Level = c.Log.Level
	view.Log.File = c.Log.File

	out, err := yaml.Marshal(&view)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// LabelledPorts returns the ports that have labels, in ascending order
func (c *Config) LabelledPorts() []int {
	ports := make([]int, 0, len(c.Labels))
	for key := range c.Labels {
		if n, err := strconv.Atoi(key); err == nil {
			ports = append(ports, n)
		}
	}
	sort.Ints(ports)
	return ports
}
