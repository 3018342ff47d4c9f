package config

import (
	"errors"
	"fleet-dispatch-service/internal/adapters/publisher"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides; "__" separates nested keys, e.g.
// DISPATCH_CACHE__BACKEND=redis.
const EnvPrefix = "DISPATCH_"

type Config struct {
	Server    ServerConfig         `json:"server"`
	Provider  ProviderConfig       `json:"provider"`
	Cache     CacheConfig          `json:"cache"`
	Publisher publisher.MQTTConfig `json:"publisher"`
	Dispatch  DispatchConfig       `json:"dispatch"`
	Logging   LoggingConfig        `json:"logging"`
	Metrics   MetricsConfig        `json:"metrics"`
	TimeZone  string               `json:"time_zone"`
}

// Default returns the configuration used when no file or override is given.
func Default() Config {
	cfg := base()
	cfg.SetDefaults()
	return cfg
}

// base holds the defaults that a zero value cannot express.
func base() Config {
	return Config{
		Dispatch: DefaultDispatchConfig(),
		Metrics:  MetricsConfig{Enabled: true},
	}
}

func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Provider.SetDefaults()
	c.Cache.SetDefaults()
	c.Publisher.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Logging.SetDefaults()
	if c.TimeZone == "" {
		c.TimeZone = "America/Los_Angeles"
	}
}

func (c Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Publisher.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Params(); err != nil {
		return err
	}
	return nil
}

// Location resolves TimeZone, used for human readable times.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("config: time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the optional YAML or JSON file at path, applies DISPATCH_
// environment overrides on top, then fills defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("config: unsupported format %q", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: read environment: %w", err)
	}

	cfg := base()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
