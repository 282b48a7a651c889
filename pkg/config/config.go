// Package config defines the Go struct types for the console configuration
// YAML and provides strict parsing and validation.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level console configuration document.
type Config struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion" jsonschema:"required,enum=console/v1"`
	Executor   Executor `yaml:"executor"   json:"executor"   jsonschema:"required"`
	Polling    Polling  `yaml:"polling,omitempty" json:"polling,omitempty"`
	Stream     Stream   `yaml:"stream,omitempty"  json:"stream,omitempty"`
	Display    Display  `yaml:"display,omitempty" json:"display,omitempty"`
}

// Executor locates the external remediation executor.
type Executor struct {
	BaseURL        string `yaml:"baseUrl" json:"baseUrl" jsonschema:"required"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty" json:"timeoutSeconds,omitempty" jsonschema:"minimum=1,maximum=120"`
}

// Polling sets the snapshot cadences. The detail view polls fast because a
// full snapshot is the fallback path when the event stream is down.
type Polling struct {
	DetailIntervalSeconds    int `yaml:"detailIntervalSeconds,omitempty"    json:"detailIntervalSeconds,omitempty"    jsonschema:"minimum=1,maximum=30"`
	ListIntervalSeconds      int `yaml:"listIntervalSeconds,omitempty"      json:"listIntervalSeconds,omitempty"      jsonschema:"minimum=1,maximum=60"`
	ApprovalsIntervalSeconds int `yaml:"approvalsIntervalSeconds,omitempty" json:"approvalsIntervalSeconds,omitempty" jsonschema:"minimum=1,maximum=60"`
}

// Stream configures the per-session WebSocket feed.
type Stream struct {
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Display holds the severity display policy rules evaluated per step.
type Display struct {
	Rules []DisplayRule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// DisplayRule maps a step predicate to a rendering emphasis. When is an
// expression over the step fields (severity, type, requiresApproval,
// completed, failed); the first matching rule wins.
type DisplayRule struct {
	When     string `yaml:"when"     json:"when"     jsonschema:"required"`
	Emphasis string `yaml:"emphasis" json:"emphasis" jsonschema:"required,enum=normal,enum=notice,enum=danger"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		APIVersion: "console/v1",
		Executor: Executor{
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 15,
		},
		Polling: Polling{
			DetailIntervalSeconds:    2,
			ListIntervalSeconds:      5,
			ApprovalsIntervalSeconds: 5,
		},
		Display: Display{
			Rules: []DisplayRule{
				{When: `failed`, Emphasis: "danger"},
				{When: `severity == "high" || severity == "critical"`, Emphasis: "danger"},
				{When: `requiresApproval`, Emphasis: "notice"},
				{When: `severity == "medium"`, Emphasis: "notice"},
			},
		},
	}
}

// LoadFile reads and strictly decodes a config file. Unknown keys are
// rejected so typos fail loudly instead of being silently ignored.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Load strictly decodes a config document and applies defaults.
func Load(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Executor.TimeoutSeconds == 0 {
		c.Executor.TimeoutSeconds = d.Executor.TimeoutSeconds
	}
	if c.Polling.DetailIntervalSeconds == 0 {
		c.Polling.DetailIntervalSeconds = d.Polling.DetailIntervalSeconds
	}
	if c.Polling.ListIntervalSeconds == 0 {
		c.Polling.ListIntervalSeconds = d.Polling.ListIntervalSeconds
	}
	if c.Polling.ApprovalsIntervalSeconds == 0 {
		c.Polling.ApprovalsIntervalSeconds = d.Polling.ApprovalsIntervalSeconds
	}
	if len(c.Display.Rules) == 0 {
		c.Display.Rules = d.Display.Rules
	}
}

// DetailInterval is the detail-view poll cadence as a duration.
func (c *Config) DetailInterval() time.Duration {
	return time.Duration(c.Polling.DetailIntervalSeconds) * time.Second
}

// ListInterval is the dashboard poll cadence as a duration.
func (c *Config) ListInterval() time.Duration {
	return time.Duration(c.Polling.ListIntervalSeconds) * time.Second
}

// ApprovalsInterval is the approval-queue poll cadence as a duration.
func (c *Config) ApprovalsInterval() time.Duration {
	return time.Duration(c.Polling.ApprovalsIntervalSeconds) * time.Second
}
