// Package config holds all codeswarm configuration.
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables. Every knob has a working default so the tool runs
// with nothing but an API key.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all codeswarm configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Workflow settings (iteration budget, parallelism)
	Workflow WorkflowConfig `yaml:"workflow"`

	// Sandbox settings
	Sandbox SandboxConfig `yaml:"sandbox"`

	// External tool collaborators (static analysis, test execution)
	Tools ToolsConfig `yaml:"tools"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the oracle client.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// Timeout for a single oracle call.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries bounds retries on throttling errors.
	MaxRetries int `yaml:"max_retries"`
}

// WorkflowConfig configures the orchestrator state machine.
type WorkflowConfig struct {
	// MaxIterations bounds the fix -> judge self-healing loop.
	MaxIterations int `yaml:"max_iterations"`
	// Parallelism is the number of file workflows allowed to run
	// concurrently. 1 means strictly sequential processing.
	Parallelism int `yaml:"parallelism"`
	// SourceGlob selects the files to process inside the target directory.
	SourceGlob string `yaml:"source_glob"`
}

// SandboxConfig configures the path guard.
type SandboxConfig struct {
	// Root is the directory all file operations must resolve inside.
	// Empty means "use the target directory passed on the command line".
	Root string `yaml:"root"`
	// Backups controls whether files are backed up before modification.
	Backups bool `yaml:"backups"`
}

// ToolsConfig configures the external analysis/test collaborators.
type ToolsConfig struct {
	// AnalyzerCmd is the static-analysis binary (absence is non-fatal).
	AnalyzerCmd     string        `yaml:"analyzer_cmd"`
	AnalyzerTimeout time.Duration `yaml:"analyzer_timeout"`
	// TestCmd is the test-execution binary (absence is non-fatal).
	TestCmd     string        `yaml:"test_cmd"`
	TestTimeout time.Duration `yaml:"test_timeout"`
}

// LoggingConfig controls the category logger and the experiment log.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	// ExperimentLog is the path of the JSON experiment document.
	ExperimentLog string `yaml:"experiment_log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:      DefaultModel,
			Timeout:    5 * time.Minute,
			MaxRetries: 3,
		},
		Workflow: WorkflowConfig{
			MaxIterations: 10,
			Parallelism:   1,
			SourceGlob:    "*.py",
		},
		Sandbox: SandboxConfig{
			Backups: true,
		},
		Tools: ToolsConfig{
			AnalyzerCmd:     "pylint",
			AnalyzerTimeout: 30 * time.Second,
			TestCmd:         "pytest",
			TestTimeout:     60 * time.Second,
		},
		Logging: LoggingConfig{
			DebugMode:     false,
			Level:         "info",
			ExperimentLog: "logs/experiment_data.json",
		},
	}
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps well-known environment variables onto the config.
// GEMINI_API_KEY takes precedence over GOOGLE_API_KEY, matching the genai SDK.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("SWARM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("SWARM_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workflow.MaxIterations = n
		}
	}
	if v := os.Getenv("SWARM_DEBUG"); v != "" {
		c.Logging.DebugMode = v == "1" || v == "true"
	}
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Workflow.MaxIterations < 1 {
		return fmt.Errorf("workflow.max_iterations must be >= 1, got %d", c.Workflow.MaxIterations)
	}
	if c.Workflow.Parallelism < 1 {
		return fmt.Errorf("workflow.parallelism must be >= 1, got %d", c.Workflow.Parallelism)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %v", c.LLM.Timeout)
	}
	return nil
}
