package app

import (
	"fmt"
	"strings"

	"github.com/hundredminds/backend/pkg/crypto"
)

const tokenSecretBytes = 48

// ApplyRuntimeDefaults ensures the token secrets are populated even when no configuration file is supplied.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)
	secrets := []struct {
		key   string
		value *string
	}{
		{"auth.access_secret", &cfg.Auth.AccessSecret},
		{"auth.refresh_secret", &cfg.Auth.RefreshSecret},
		{"auth.general_secret", &cfg.Auth.GeneralSecret},
	}

	for _, s := range secrets {
		if strings.TrimSpace(*s.value) != "" {
			continue
		}
		secret, err := crypto.GenerateToken(tokenSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", s.key, err)
		}
		*s.value = secret
		generated[s.key] = true
	}

	return generated, nil
}
