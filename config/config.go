package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWorkers        = 100
	DefaultConnectTimeout = 300 * time.Millisecond
	DefaultBannerTimeout  = 300 * time.Millisecond
	DefaultPorts          = "1-1024"

	MinWorkers = 1
	MaxWorkers = 2000
	MinTimeout = 10 * time.Millisecond

	EnvPrefix = "PORTPROBE_"
)

// Config holds scan settings before they are turned into a scan.Config.
type Config struct {
	Ports          string   `yaml:"ports"`
	Workers        int      `yaml:"workers"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	BannerTimeout  Duration `yaml:"banner_timeout"`
	BannerProbe    *string  `yaml:"banner_probe"`
	NoBanner       bool     `yaml:"no_banner"`
}

// Duration wraps time.Duration for YAML unmarshalling from strings like "300ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

func Default() Config {
	return Config{
		Ports:          DefaultPorts,
		Workers:        DefaultWorkers,
		ConnectTimeout: Duration{DefaultConnectTimeout},
		BannerTimeout:  Duration{DefaultBannerTimeout},
	}
}

// Load builds a Config from defaults, the YAML file at path (if any) and
// PORTPROBE_* environment variables, later sources winning.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadEnvFile loads .env style files into the process environment. Missing
// files are ignored and variables already set are left alone.
func LoadEnvFile(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overlays PORTPROBE_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "PORTS"); ok {
		c.Ports = v
	}

	if v, ok := lookup(EnvPrefix + "WORKERS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sWORKERS is not a number: %s", EnvPrefix, v)
		}
		c.Workers = n
	}

	for _, d := range []struct {
		key    string
		target *Duration
	}{
		{"CONNECT_TIMEOUT", &c.ConnectTimeout},
		{"BANNER_TIMEOUT", &c.BannerTimeout},
	} {
		v, ok := lookup(EnvPrefix + d.key)
		if !ok {
			continue
		}
		dur, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, d.key, err)
		}
		d.target.Duration = dur
	}

	if v, ok := lookup(EnvPrefix + "BANNER_PROBE"); ok {
		probe := v
		c.BannerProbe = &probe
	}

	if v, ok := lookup(EnvPrefix + "NO_BANNER"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sNO_BANNER is not a boolean: %s", EnvPrefix, v)
		}
		c.NoBanner = b
	}

	return nil
}

// Normalize clamps workers and timeouts into the supported range.
func (c Config) Normalize() Config {
	if c.Workers < MinWorkers {
		c.Workers = MinWorkers
	}
	if c.Workers > MaxWorkers {
		c.Workers = MaxWorkers
	}
	if c.ConnectTimeout.Duration < MinTimeout {
		c.ConnectTimeout.Duration = MinTimeout
	}
	if c.BannerTimeout.Duration < MinTimeout {
		c.BannerTimeout.Duration = MinTimeout
	}
	return c
}

// EffectiveBannerTimeout is zero when banner grabbing is disabled.
func (c Config) EffectiveBannerTimeout() time.Duration {
	if c.NoBanner {
		return 0
	}
	return c.BannerTimeout.Duration
}

// Probe returns the banner probe payload, or nil for the scanner default.
func (c Config) Probe() []byte {
	if c.BannerProbe == nil {
		return nil
	}
	return []byte(*c.BannerProbe)
}
