package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Wire parameters of the sniffer firmware; not configurable.
const (
	BaudRate     = 115200
	ReadTimeout  = 1 * time.Second
	PollInterval = 10 * time.Millisecond
	StopTimeout  = 2 * time.Second
)

const (
	configName = "gamepad-bridge"
	envPrefix  = "gamepad_bridge"
)

// Device is the identity of the virtual controller.
type Device struct {
	Name         string `mapstructure:"name" yaml:"name"`
	Vendor       uint16 `mapstructure:"vendor" yaml:"vendor"`
	Product      uint16 `mapstructure:"product" yaml:"product"`
	Capabilities string `mapstructure:"capabilities" yaml:"capabilities"` // minimal or xbox360
}

// Config holds the bridge configuration.
type Config struct {
	Port     string `mapstructure:"port" yaml:"port"` // /dev/ttyUSB0, COM3, tcp://host:port or auto
	WSAddr   string `mapstructure:"ws_addr" yaml:"ws_addr"`
	LogDir   string `mapstructure:"log_dir" yaml:"log_dir"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	HoldMs   int    `mapstructure:"hold_ms" yaml:"hold_ms"`
	Device   Device `mapstructure:"device" yaml:"device"`

	BaudRate     int           `mapstructure:"-" yaml:"-"`
	ReadTimeout  time.Duration `mapstructure:"-" yaml:"-"`
	PollInterval time.Duration `mapstructure:"-" yaml:"-"`
	StopTimeout  time.Duration `mapstructure:"-" yaml:"-"`
}

// DefaultPort returns the conventional serial port for the host OS.
func DefaultPort() string {
	if runtime.GOOS == "windows" {
		return "COM3"
	}
	return "/dev/ttyUSB0"
}

// Defaults returns the built-in configuration values keyed by viper key.
func Defaults() map[string]any {
	return map[string]any{
		"port":                DefaultPort(),
		"ws_addr":             ":8989",
		"log_dir":             "",
		"log_level":           "info",
		"hold_ms":             100,
		"device.name":         "Wii U GamePad (Virtual Xbox)",
		"device.vendor":       0x045e,
		"device.product":      0x028e,
		"device.capabilities": "xbox360",
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"port":         "port",
	"ws":           "ws_addr",
	"log-dir":      "log_dir",
	"log-level":    "log_level",
	"hold-ms":      "hold_ms",
	"capabilities": "device.capabilities",
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("port", d["port"].(string), "Serial port (e.g. /dev/ttyUSB0, COM3, tcp://localhost:9999, auto)")
	fs.String("ws", d["ws_addr"].(string), "WebSocket control address")
	fs.String("log-dir", "", "Directory for the log file (stderr when empty)")
	fs.String("log-level", d["log_level"].(string), "Log level: debug, info, warn, error")
	fs.Int("hold-ms", d["hold_ms"].(int), "Hold duration of a simulated press in milliseconds")
	fs.String("capabilities", d["device.capabilities"].(string), "Virtual device profile: minimal or xbox360")
}

// configPath returns the per-user or system-wide config file location.
func configPath(system bool) (string, error) {
	var dir string
	if system {
		switch runtime.GOOS {
		case "windows":
			dir = filepath.Join(os.Getenv("ProgramData"), "gamepad-bridge")
		default:
			dir = "/etc/gamepad-bridge"
		}
	} else {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		dir = filepath.Join(base, "gamepad-bridge")
	}
	return filepath.Join(dir, configName+".yaml"), nil
}

// Load resolves configuration from defaults, config file, GAMEPAD_BRIDGE_*
// environment variables and the flags of cmd, in increasing precedence.
// cfgFile, when non-empty, replaces the config file search.
func Load(cmd *cobra.Command, cfgFile string) (*Config, error) {
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		if p, err := configPath(false); err == nil {
			v.AddConfigPath(filepath.Dir(p))
		}
		if p, err := configPath(true); err == nil {
			v.AddConfigPath(filepath.Dir(p))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	c.BaudRate = BaudRate
	c.ReadTimeout = ReadTimeout
	c.PollInterval = PollInterval
	c.StopTimeout = StopTimeout

	if c.HoldMs <= 0 {
		return nil, fmt.Errorf("hold_ms must be positive, got %d", c.HoldMs)
	}
	return &c, nil
}

// HoldDuration is the simulated press duration.
func (c *Config) HoldDuration() time.Duration {
	return time.Duration(c.HoldMs) * time.Millisecond
}

// WriteFile writes c as YAML to path, or to the per-user config location
// when path is empty, and returns the path written.
func WriteFile(c *Config, path string) (string, error) {
	if path == "" {
		p, err := configPath(false)
		if err != nil {
			return "", err
		}
		path = p
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
