package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsNonPositiveBudgets(t *testing.T) {
	cfg := Default()
	cfg.MaxSteps = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxTimeSec = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.RepeatedFailureThreshold = 1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.OutDir = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("REPAIRBENCH_MAX_STEPS", "7")
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxSteps)
}
