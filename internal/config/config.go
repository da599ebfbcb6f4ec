// Package config binds the engine's external configuration options (§6 of
// the task specification: max_steps, max_time_sec, per-tool timeouts, and
// so on) to environment variables and an optional YAML file via viper,
// following the teacher's BindPFlag/BindEnv/SetEnvKeyReplacer pattern.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full set of options the core engine recognizes.
type Config struct {
	MaxSteps                 int  `mapstructure:"max-steps"`
	MaxTimeSec               int  `mapstructure:"max-time-sec"`
	RepeatedFailureThreshold int  `mapstructure:"repeated-failure-threshold"`
	MaxPatchAttempts         int  `mapstructure:"max-patch-attempts"`
	StrictPatchMode          bool `mapstructure:"strict-patch-mode"`

	ListTimeoutSec   int `mapstructure:"list-timeout-sec"`
	ReadTimeoutSec   int `mapstructure:"read-timeout-sec"`
	SearchTimeoutSec int `mapstructure:"search-timeout-sec"`
	RunTimeoutSec    int `mapstructure:"run-timeout-sec"`

	TruncateMaxLines int `mapstructure:"truncate-max-lines"`
	TruncateMaxChars int `mapstructure:"truncate-max-chars"`
	TruncateHeadKeep int `mapstructure:"truncate-head-keep"`
	TruncateTailKeep int `mapstructure:"truncate-tail-keep"`

	LLMTranscriptLogging bool `mapstructure:"llm-transcript-logging"`

	OutDir string `mapstructure:"out-dir"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

// Default returns the spec's documented defaults.
func Default() Config {
	return Config{
		MaxSteps:                 20,
		MaxTimeSec:               600,
		RepeatedFailureThreshold: 3,
		MaxPatchAttempts:         10,
		StrictPatchMode:          false,

		ListTimeoutSec:   10,
		ReadTimeoutSec:   10,
		SearchTimeoutSec: 30,
		RunTimeoutSec:    60,

		TruncateMaxLines: 500,
		TruncateMaxChars: 20000,
		TruncateHeadKeep: 200,
		TruncateTailKeep: 200,

		LLMTranscriptLogging: false,

		OutDir: "./out",

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate rejects configurations the loop could not run safely with.
func (c Config) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("config: max-steps must be positive, got %d", c.MaxSteps)
	}
	if c.MaxTimeSec <= 0 {
		return fmt.Errorf("config: max-time-sec must be positive, got %d", c.MaxTimeSec)
	}
	if c.RepeatedFailureThreshold < 2 {
		return fmt.Errorf("config: repeated-failure-threshold must be >= 2, got %d", c.RepeatedFailureThreshold)
	}
	if c.MaxPatchAttempts <= 0 {
		return fmt.Errorf("config: max-patch-attempts must be positive, got %d", c.MaxPatchAttempts)
	}
	for name, v := range map[string]int{
		"list-timeout-sec":   c.ListTimeoutSec,
		"read-timeout-sec":   c.ReadTimeoutSec,
		"search-timeout-sec": c.SearchTimeoutSec,
		"run-timeout-sec":    c.RunTimeoutSec,
	} {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", name, v)
		}
	}
	if c.TruncateMaxLines <= 0 || c.TruncateMaxChars <= 0 {
		return fmt.Errorf("config: truncation limits must be positive")
	}
	if c.OutDir == "" {
		return fmt.Errorf("config: out-dir must not be empty")
	}
	return nil
}

// Load reads the engine configuration from an optional YAML file plus
// REPAIRBENCH_-prefixed environment variables, following the teacher's
// viper wiring in planner/root.go. Values already bound by the caller's
// cobra flags (via viper.BindPFlag) take precedence over the file and
// defaults; the environment takes precedence over both.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	def := Default()
	v.SetDefault("max-steps", def.MaxSteps)
	v.SetDefault("max-time-sec", def.MaxTimeSec)
	v.SetDefault("repeated-failure-threshold", def.RepeatedFailureThreshold)
	v.SetDefault("max-patch-attempts", def.MaxPatchAttempts)
	v.SetDefault("strict-patch-mode", def.StrictPatchMode)
	v.SetDefault("list-timeout-sec", def.ListTimeoutSec)
	v.SetDefault("read-timeout-sec", def.ReadTimeoutSec)
	v.SetDefault("search-timeout-sec", def.SearchTimeoutSec)
	v.SetDefault("run-timeout-sec", def.RunTimeoutSec)
	v.SetDefault("truncate-max-lines", def.TruncateMaxLines)
	v.SetDefault("truncate-max-chars", def.TruncateMaxChars)
	v.SetDefault("truncate-head-keep", def.TruncateHeadKeep)
	v.SetDefault("truncate-tail-keep", def.TruncateTailKeep)
	v.SetDefault("llm-transcript-logging", def.LLMTranscriptLogging)
	v.SetDefault("out-dir", def.OutDir)
	v.SetDefault("log-level", def.LogLevel)
	v.SetDefault("log-format", def.LogFormat)

	v.SetEnvPrefix("REPAIRBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
