// Package configuration loads the deckstore configuration from a yaml
// document, with environment variables overriding individual fields. Every
// override is named DECKSTORE_ followed by the upper-cased path of the
// field it replaces.
package configuration

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Configuration carries every knob of the storage core and its HTTP
// surface.
type Configuration struct {
	// Loglevel is one of error, warn, info, debug.
	Loglevel Loglevel `yaml:"loglevel"`

	HTTP struct {
		// Addr is the bind address of the HTTP surface.
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Redis struct {
		// URL is the connection URL of the backing store, in
		// redis://[user:pass@]host:port/db form.
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Storage struct {
		// Prefix is an optional namespace prepended to every key.
		Prefix string `yaml:"prefix"`
	} `yaml:"storage"`

	Thumbnails struct {
		// Disabled turns off thumbnail generation on save.
		Disabled bool `yaml:"disabled"`
	} `yaml:"thumbnails"`
}

// Loglevel is validated during unmarshal so a typo fails at startup, not
// at the first log call.
type Loglevel string

func (l *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	s = strings.ToLower(s)
	switch s {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid loglevel %q, must be one of [error, warn, info, debug]", s)
	}
	*l = Loglevel(s)
	return nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Configuration {
	config := &Configuration{Loglevel: "info"}
	config.HTTP.Addr = ":6060"
	config.Redis.URL = "redis://localhost:6379/0"
	return config
}

// Parse reads a yaml configuration and applies environment overrides.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	config := Default()
	if err := yaml.Unmarshal(in, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	applyEnv(config)
	return config, nil
}

// FromEnv returns the default configuration with environment overrides
// applied, for deployments that configure through the environment alone.
func FromEnv() *Configuration {
	config := Default()
	applyEnv(config)
	return config
}

func applyEnv(config *Configuration) {
	if v, ok := os.LookupEnv("DECKSTORE_LOGLEVEL"); ok {
		config.Loglevel = Loglevel(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv("DECKSTORE_HTTP_ADDR"); ok {
		config.HTTP.Addr = v
	}
	if v, ok := os.LookupEnv("DECKSTORE_REDIS_URL"); ok {
		config.Redis.URL = v
	}
	if v, ok := os.LookupEnv("DECKSTORE_STORAGE_PREFIX"); ok {
		config.Storage.Prefix = v
	}
	if v, ok := os.LookupEnv("DECKSTORE_THUMBNAILS_DISABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Thumbnails.Disabled = b
		}
	}
}
