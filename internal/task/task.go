// Package task loads and validates the task specification YAML described
// in the external interfaces: an immutable, read-only description of a
// repository, its setup/test commands, and optional validation hints.
package task

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SupportedSpecVersion is the only task_spec_version this binary accepts.
const SupportedSpecVersion = "1"

// Classification is a closed-set label supplementing a task's free-form
// labels, surfaced read-only in the attempt record for aggregation.
type Classification string

const (
	ClassificationBuildPackage Classification = "build-package"
	ClassificationFixTest      Classification = "fix-test"
	ClassificationFixBuild     Classification = "fix-build"
	ClassificationOther        Classification = "other"
)

// Repo names a Git repository at a pinned commit.
type Repo struct {
	URL    string `yaml:"url" validate:"required"`
	Commit string `yaml:"commit" validate:"required"`
}

// Environment describes the container the task runs inside.
type Environment struct {
	DockerImage string `yaml:"docker_image" validate:"required"`
	Workdir     string `yaml:"workdir" validate:"required"`
	TimeoutSec  int    `yaml:"timeout_sec" validate:"required,gt=0"`
}

// Setup lists the commands (and, as a supplemented feature, patch files)
// applied to a fresh checkout before the baseline test command runs.
type Setup struct {
	Commands []string `yaml:"commands"`
	// Patch lists workspace-relative .patch files applied via `git apply`
	// before Commands run. Supplements the baseline's setup step; resolved
	// through the same path-safety layer as every other workspace path.
	Patch []string `yaml:"patch"`
}

// Run names the single command whose exit code decides pass/fail.
type Run struct {
	Command string `yaml:"command" validate:"required"`
}

// Validation carries optional hints the baseline validator checks the
// captured output against.
type Validation struct {
	ExpectedExitCodes     []int    `yaml:"expected_exit_codes"`
	ExpectedFailureRegex  string   `yaml:"expected_failure_regex"`
	ExpectedStdoutRegex   string   `yaml:"expected_stdout_regex"`
	ExpectedStderrRegex   string   `yaml:"expected_stderr_regex"`
	DisallowedFailureRegex string  `yaml:"disallowed_failure_regex"`
	ExpectedFailingTests  []string `yaml:"expected_failing_tests"`
}

// Agent carries optional hints for the agent's entrypoint.
type Agent struct {
	Entrypoint string `yaml:"entrypoint"`
	MaxSteps   int    `yaml:"max_steps"`
	// ScriptedFixturePath generalizes the scripted self-test agent's
	// hard-coded patch target into a task-defined fixture. Defaults to
	// "src/toy/mathy.py" when empty, preserving the literal scenario the
	// scripted agent was originally written against.
	ScriptedFixturePath string `yaml:"scripted_fixture_path"`
}

// Classify carries the supplemented classification field.
type Classify struct {
	Type Classification `yaml:"type"`
}

// Spec is the immutable task specification: created by upstream loaders,
// read-only thereafter.
type Spec struct {
	TaskSpecVersion  string          `yaml:"task_spec_version" validate:"required"`
	ID               string          `yaml:"id" validate:"required"`
	Suite            string          `yaml:"suite" validate:"required"`
	Repo             Repo            `yaml:"repo" validate:"required"`
	Environment      Environment     `yaml:"environment" validate:"required"`
	Setup            Setup           `yaml:"setup"`
	RunCmd           Run             `yaml:"run" validate:"required"`
	Validation       *Validation     `yaml:"validation"`
	HarnessMinVersion string         `yaml:"harness_min_version"`
	Labels           []string        `yaml:"labels"`
	AgentSpec        *Agent          `yaml:"agent"`
	Classification   *Classify       `yaml:"classification"`
}

// ScriptedFixturePath returns the agent's configured fixture path, or the
// historical default when none was given.
func (s *Spec) ScriptedFixturePath() string {
	if s.AgentSpec != nil && s.AgentSpec.ScriptedFixturePath != "" {
		return s.AgentSpec.ScriptedFixturePath
	}
	return "src/toy/mathy.py"
}

// MaxSteps returns the task-level step override, or 0 when unset (the
// caller should fall back to its own configured default).
func (s *Spec) MaxSteps() int {
	if s.AgentSpec == nil {
		return 0
	}
	return s.AgentSpec.MaxSteps
}

var validate = validator.New()

// Load parses and validates a task specification from YAML bytes. Unknown
// keys are rejected, per the external interface contract.
func Load(data []byte) (*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("task: decoding spec: %w", err)
	}

	if spec.TaskSpecVersion != SupportedSpecVersion {
		return nil, fmt.Errorf("task: unsupported task_spec_version %q, want %q", spec.TaskSpecVersion, SupportedSpecVersion)
	}

	if err := validate.Struct(&spec); err != nil {
		return nil, fmt.Errorf("task: validation failed: %w", err)
	}

	if spec.Validation != nil {
		for name, pattern := range map[string]string{
			"expected_failure_regex":   spec.Validation.ExpectedFailureRegex,
			"expected_stdout_regex":    spec.Validation.ExpectedStdoutRegex,
			"expected_stderr_regex":    spec.Validation.ExpectedStderrRegex,
			"disallowed_failure_regex": spec.Validation.DisallowedFailureRegex,
		} {
			if pattern == "" {
				continue
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return nil, fmt.Errorf("task: %s does not compile: %w", name, err)
			}
		}
	}

	if spec.Classification != nil {
		switch spec.Classification.Type {
		case ClassificationBuildPackage, ClassificationFixTest, ClassificationFixBuild, ClassificationOther, "":
		default:
			return nil, fmt.Errorf("task: unknown classification.type %q", spec.Classification.Type)
		}
	}

	return &spec, nil
}
