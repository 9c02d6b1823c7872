package config

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bandWeights decodes "a,b,c,d" the way scoring weights are configured.
type bandWeights [4]int

func (w *bandWeights) UnmarshalText(b []byte) error {
	parts := strings.Split(string(b), ",")
	if len(parts) != len(w) {
		return fmt.Errorf("want %d weights, got %d", len(w), len(parts))
	}
	for i, p := range parts {
		if _, err := fmt.Sscanf(p, "%d", &w[i]); err != nil {
			return err
		}
	}
	return nil
}

type testConfig struct {
	Port    int         `env:"PORT" envDefault:"8013"`
	Brokers []string    `env:"BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Weights bandWeights `env:"WEIGHTS" envDefault:"50,25,15,10"`
	Debug   bool        `env:"DEBUG"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg, WithEnvironment(map[string]string{})))

	assert.Equal(t, 8013, cfg.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, bandWeights{50, 25, 15, 10}, cfg.Weights)
	assert.False(t, cfg.Debug)
}

func TestLoad_Overrides(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg, WithEnvironment(map[string]string{
		"PORT":    "9090",
		"BROKERS": "k1:9092,k2:9092",
		"WEIGHTS": "40,30,20,10",
		"DEBUG":   "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.Equal(t, bandWeights{40, 30, 20, 10}, cfg.Weights)
	assert.True(t, cfg.Debug)
}

func TestLoad_Prefix(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg,
		WithPrefix("IMPORTER_"),
		WithEnvironment(map[string]string{"IMPORTER_PORT": "7000", "PORT": "1"}),
	)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]map[string]string{
		"bad int":        {"PORT": "eighty"},
		"bad unmarshal":  {"WEIGHTS": "1,2"},
		"bad bool value": {"DEBUG": "sometimes"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			var cfg testConfig
			err := Load(&cfg, WithEnvironment(vars))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse config")
		})
	}

	assert.Error(t, Load(testConfig{}))
}
