package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.RefreshSecret = "configured"

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	require.Equal(t, map[string]bool{"auth.access_secret": true, "auth.general_secret": true}, generated)
	require.NotEmpty(t, cfg.Auth.AccessSecret)
	require.NotEmpty(t, cfg.Auth.GeneralSecret)
	require.NotEqual(t, cfg.Auth.AccessSecret, cfg.Auth.GeneralSecret)
	require.Equal(t, "configured", cfg.Auth.RefreshSecret)
}

func TestApplyRuntimeDefaultsPreservesExistingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.AccessSecret = strings.Repeat("a", 10)
	cfg.Auth.RefreshSecret = strings.Repeat("b", 10)
	cfg.Auth.GeneralSecret = strings.Repeat("c", 10)

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.ErrorContains(t, err, "config is nil")
}
