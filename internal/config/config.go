package config

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Hue      HueConfig      `yaml:"hue"`
	MIDI     MIDIConfig     `yaml:"midi"`
	Lights   []string       `yaml:"lights"`
	Presets  PresetsConfig  `yaml:"presets"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Log      LogConfig      `yaml:"log"`
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge   string   `yaml:"bridge"`
	Username string   `yaml:"username"`
	Timeout  Duration `yaml:"timeout"` // HTTP timeout for Hue API requests
}

// MIDIConfig contains MIDI controller settings
type MIDIConfig struct {
	Port string `yaml:"port"` // substring matched against input port names
}

// PresetsConfig contains preset storage settings
type PresetsConfig struct {
	Path string `yaml:"path"`
}

// DispatchConfig contains light dispatcher settings
type DispatchConfig struct {
	Interval  Duration `yaml:"interval"`   // cadence between dispatch cycles
	BlinkFade Duration `yaml:"blink_fade"` // fade-out time of the blink effect
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file. A missing file is not an
// error: the daemon runs fine on defaults plus flags.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only
	case err != nil:
		return nil, err
	default:
		// Expand environment variables
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Hue.Bridge == "" {
		c.Hue.Bridge = "10.0.0.33"
	}
	if c.Hue.Timeout == 0 {
		c.Hue.Timeout = Duration(5 * time.Second)
	}
	if c.MIDI.Port == "" {
		c.MIDI.Port = "LPD8"
	}
	if len(c.Lights) == 0 {
		c.Lights = []string{"1", "2"}
	}
	if c.Presets.Path == "" {
		c.Presets.Path = defaultPresetPath()
	}
	if c.Dispatch.Interval == 0 {
		c.Dispatch.Interval = Duration(100 * time.Millisecond)
	}
	if c.Dispatch.BlinkFade == 0 {
		c.Dispatch.BlinkFade = Duration(200 * time.Millisecond)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func defaultPresetPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "huepad", "default.json")
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
