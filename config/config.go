// Package config provides YAML configuration parsing for rollcall.
//
// This package enables running rollcall as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: ${SCHOOL_NAME:-點名系統}
//	port: 8000
//	write_timeout: 5s
//	send_buffer: 64
//	allowed_origins:
//	  - https://school.example
//
//	metrics:
//	  enabled: true
//	  path: /metrics
//
//	classrooms:
//	  - name: 一年甲班
//	    path: class-1a
//	    students: [Bob, Alice]
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort         = 8000
	defaultWriteTimeout = 5 * time.Second
	defaultSendBuffer   = 64
	defaultMetricsPath  = "/metrics"

	// minWriteTimeout keeps a briefly stalled browser from being dropped.
	minWriteTimeout = 1 * time.Second
	maxSendBuffer   = 4096
)

// pathPattern matches classroom paths that can be served as a page.
var pathPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// Config is the root configuration structure for rollcall.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the page title. Defaults to "點名系統" if not set.
	// Supports environment variable substitution.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8000.
	Port int `yaml:"port"`

	// WriteTimeout bounds each WebSocket write. Defaults to 5s.
	WriteTimeout Duration `yaml:"write_timeout"`

	// SendBuffer is the per-observer outbound queue length. Defaults to 64.
	SendBuffer int `yaml:"send_buffer"`

	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// Empty accepts any origin. Values support environment variable substitution.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Metrics controls the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Classrooms are loaded into the store at start.
	Classrooms []ClassroomConfig `yaml:"classrooms"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the endpoint on. Defaults to false.
	Enabled bool `yaml:"enabled"`

	// Path is where metrics are served. Defaults to /metrics.
	Path string `yaml:"path"`
}

// ClassroomConfig defines a seed classroom.
type ClassroomConfig struct {
	// ID is optional. A random id is assigned when empty.
	ID string `yaml:"id"`

	// Name is the display name. Supports environment variable substitution.
	Name string `yaml:"name"`

	// Path is the page slug, unique among classrooms.
	Path string `yaml:"path"`

	// Students lists the roster in display order.
	Students []string `yaml:"students"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the title, allowed origins and
// classroom names. Defaults are applied for Port (8000), WriteTimeout (5s),
// SendBuffer (64) and the metrics path (/metrics).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	title, err := expandEnvVars(c.Title)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	c.Title = title

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.WriteTimeout.Duration() < minWriteTimeout {
		return fmt.Errorf("write_timeout must be at least %s, got %s", minWriteTimeout, c.WriteTimeout.Duration())
	}

	if c.SendBuffer < 1 || c.SendBuffer > maxSendBuffer {
		return fmt.Errorf("send_buffer must be between 1 and %d, got %d", maxSendBuffer, c.SendBuffer)
	}

	for i, origin := range c.AllowedOrigins {
		expanded, err := expandEnvVars(origin)
		if err != nil {
			return fmt.Errorf("allowed_origins[%d]: %w", i, err)
		}
		parsed, err := url.Parse(expanded)
		if err != nil {
			return fmt.Errorf("allowed_origins[%d]: invalid origin: %w", i, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("allowed_origins[%d]: origin scheme must be http or https, got %q", i, parsed.Scheme)
		}
		if parsed.Host == "" || (parsed.Path != "" && parsed.Path != "/") {
			return fmt.Errorf("allowed_origins[%d]: origin must be scheme://host[:port], got %q", i, expanded)
		}
		c.AllowedOrigins[i] = parsed.Scheme + "://" + parsed.Host
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	paths := make(map[string]int, len(c.Classrooms))
	ids := make(map[string]int, len(c.Classrooms))
	for i := range c.Classrooms {
		cl := &c.Classrooms[i]

		name, err := expandEnvVars(cl.Name)
		if err != nil {
			return fmt.Errorf("classrooms[%d]: name: %w", i, err)
		}
		cl.Name = name
		if cl.Name == "" {
			return fmt.Errorf("classrooms[%d]: name is required", i)
		}

		if cl.Path == "" {
			return fmt.Errorf("classrooms[%d] (%s): path is required", i, cl.Name)
		}
		if !pathPattern.MatchString(cl.Path) {
			return fmt.Errorf("classrooms[%d] (%s): path %q may only contain letters, digits, '-' and '_'", i, cl.Name, cl.Path)
		}
		if prev, exists := paths[cl.Path]; exists {
			return fmt.Errorf("classrooms[%d] (%s): path %q already used by classrooms[%d]", i, cl.Name, cl.Path, prev)
		}
		paths[cl.Path] = i

		if cl.ID != "" {
			if prev, exists := ids[cl.ID]; exists {
				return fmt.Errorf("classrooms[%d] (%s): id %q already used by classrooms[%d]", i, cl.Name, cl.ID, prev)
			}
			ids[cl.ID] = i
		}

		for j, s := range cl.Students {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("classrooms[%d] (%s): students[%d] is empty", i, cl.Name, j)
			}
		}
	}

	return nil
}
