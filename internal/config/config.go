// Package config loads injector settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/whispin/modloader/internal/injector"
	"github.com/whispin/modloader/internal/orchestrator"
	"github.com/whispin/modloader/internal/process"
	"github.com/whispin/modloader/internal/target"
)

// Remote thread waits are passed to WaitForSingleObject in whole milliseconds,
// and 0xFFFFFFFF means INFINITE there.
const (
	MinInjectTimeout = time.Millisecond
	MaxInjectTimeout = time.Duration(math.MaxUint32-1) * time.Millisecond
)

// Config holds the injector configuration
type Config struct {
	// Mode is "frozen" or "running"
	Mode string `yaml:"mode"`
	// Policy is "fail-fast" or "best-effort"; empty picks the mode's default
	Policy string `yaml:"policy"`

	Readiness ReadinessConfig `yaml:"readiness"`
	Inject    InjectConfig    `yaml:"inject"`
	Target    TargetConfig    `yaml:"target"`
	Log       LogConfig       `yaml:"log"`
}

// ReadinessConfig holds the running-mode wait settings
type ReadinessConfig struct {
	Marker   string        `yaml:"marker"`
	Interval time.Duration `yaml:"interval"`
	Attempts int           `yaml:"attempts"`
}

// InjectConfig holds the remote loader settings
type InjectConfig struct {
	Timeout              time.Duration `yaml:"timeout"`
	VerifyLoaderExitCode bool          `yaml:"verify_loader_exit_code"`
	Charset              string        `yaml:"charset"`
}

// TargetConfig holds settings applied to every launch
type TargetConfig struct {
	// ExtraArgs is a shell-quoted string appended after the command line arguments
	ExtraArgs string `yaml:"extra_args"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Mode: "frozen",
		Readiness: ReadinessConfig{
			Interval: process.DefaultPollInterval,
			Attempts: process.DefaultMaxAttempts,
		},
		Inject: InjectConfig{
			Timeout:              injector.DefaultTimeout,
			VerifyLoaderExitCode: true,
			Charset:              "utf16",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enum values and limits
func (c *Config) Validate() error {
	mode, err := c.LaunchMode()
	if err != nil {
		return err
	}
	if c.Policy != "" {
		if _, err := orchestrator.ParsePolicy(c.Policy); err != nil {
			return err
		}
	}
	if _, err := c.Charset(); err != nil {
		return err
	}
	if _, err := c.ExtraArgs(); err != nil {
		return err
	}
	if c.Readiness.Interval <= 0 {
		return errors.New("readiness.interval must be positive")
	}
	if c.Readiness.Attempts <= 0 {
		return errors.New("readiness.attempts must be positive")
	}
	if c.Inject.Timeout < MinInjectTimeout || c.Inject.Timeout > MaxInjectTimeout {
		return fmt.Errorf("inject.timeout must be between %s and %s, got %s",
			MinInjectTimeout, MaxInjectTimeout, c.Inject.Timeout)
	}
	if mode == process.Running && strings.TrimSpace(c.Readiness.Marker) == "" {
		return errors.New("running mode requires readiness.marker")
	}
	return nil
}

// LaunchMode parses Mode
func (c *Config) LaunchMode() (process.Mode, error) {
	return process.ParseMode(c.Mode)
}

// FailurePolicy parses Policy, defaulting from the launch mode
func (c *Config) FailurePolicy() (orchestrator.Policy, error) {
	if c.Policy == "" {
		mode, err := c.LaunchMode()
		if err != nil {
			return 0, err
		}
		return orchestrator.DefaultPolicy(mode), nil
	}
	return orchestrator.ParsePolicy(c.Policy)
}

// Charset parses Inject.Charset
func (c *Config) Charset() (target.Charset, error) {
	switch strings.ToLower(c.Inject.Charset) {
	case "", "utf16", "utf-16", "wide":
		return target.UTF16, nil
	case "ansi", "latin1":
		return target.ANSI, nil
	default:
		return 0, fmt.Errorf("unknown charset %q", c.Inject.Charset)
	}
}

// ExtraArgs splits Target.ExtraArgs the way a shell would
func (c *Config) ExtraArgs() ([]string, error) {
	if strings.TrimSpace(c.Target.ExtraArgs) == "" {
		return nil, nil
	}
	args, err := shellquote.Split(c.Target.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("parse target.extra_args: %w", err)
	}
	return args, nil
}

// Session builds the orchestrator configuration for one invocation
func (c *Config) Session(targetPath string, modules, args []string) (orchestrator.Config, error) {
	if err := c.Validate(); err != nil {
		return orchestrator.Config{}, err
	}

	// Validate has already parsed every field below
	mode, _ := c.LaunchMode()
	policy, _ := c.FailurePolicy()
	charset, _ := c.Charset()
	extra, _ := c.ExtraArgs()

	return orchestrator.Config{
		Target:       targetPath,
		Mode:         mode,
		Policy:       policy,
		Args:         append(append([]string(nil), args...), extra...),
		Modules:      append([]string(nil), modules...),
		Marker:       strings.TrimSpace(c.Readiness.Marker),
		PollInterval: c.Readiness.Interval,
		MaxAttempts:  c.Readiness.Attempts,
		Inject: injector.Options{
			Timeout:              c.Inject.Timeout,
			VerifyLoaderExitCode: c.Inject.VerifyLoaderExitCode,
			Charset:              charset,
		},
	}, nil
}
