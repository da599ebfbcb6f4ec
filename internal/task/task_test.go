package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSpec = `
task_spec_version: "1"
id: toy_fail_pytest
suite: toy
repo:
  url: file:///testdata/toy_fail_pytest
  commit: HEAD
environment:
  docker_image: python:3.11-slim
  workdir: /workspace
  timeout_sec: 120
setup:
  commands:
    - pip install pytest
run:
  command: "pytest -q"
validation:
  expected_exit_codes: [1]
agent:
  scripted_fixture_path: src/toy/mathy.py
classification:
  type: fix-test
`

func TestLoadValidSpec(t *testing.T) {
	spec, err := Load([]byte(validSpec))
	require.NoError(t, err)
	assert.Equal(t, "toy_fail_pytest", spec.ID)
	assert.Equal(t, "pytest -q", spec.RunCmd.Command)
	assert.Equal(t, "src/toy/mathy.py", spec.ScriptedFixturePath())
	assert.Equal(t, 0, spec.MaxSteps())
}

func TestScriptedFixturePathDefault(t *testing.T) {
	spec := &Spec{}
	assert.Equal(t, "src/toy/mathy.py", spec.ScriptedFixturePath())
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	_, err := Load([]byte(`
task_spec_version: "2"
id: x
suite: x
repo: {url: u, commit: c}
environment: {docker_image: i, workdir: w, timeout_sec: 1}
run: {command: c}
`))
	require.Error(t, err)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load([]byte(validSpec + "\nbogus_field: true\n"))
	require.Error(t, err)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	_, err := Load([]byte(`
task_spec_version: "1"
id: x
suite: x
`))
	require.Error(t, err)
}

func TestLoadRejectsUncompilableRegex(t *testing.T) {
	_, err := Load([]byte(`
task_spec_version: "1"
id: x
suite: x
repo: {url: u, commit: c}
environment: {docker_image: i, workdir: w, timeout_sec: 1}
run: {command: c}
validation:
  expected_failure_regex: "(unterminated"
`))
	require.Error(t, err)
}

func TestLoadRejectsUnknownClassification(t *testing.T) {
	_, err := Load([]byte(`
task_spec_version: "1"
id: toy_fail_pytest
suite: toy
repo: {url: u, commit: c}
environment: {docker_image: i, workdir: w, timeout_sec: 1}
run: {command: c}
classification:
  type: bogus
`))
	require.Error(t, err)
}
