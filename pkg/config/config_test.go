package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		ProjectionLookback:     6,
		ValuationLookback:      4,
		LeagueTimezone:         "America/New_York",
		MonitorDefaultInterval: 2 * time.Minute,
		MonitorUrgentInterval:  time.Minute,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "projection lookback too small", mutate: func(c *Config) { c.ProjectionLookback = 1 }, wantErr: true},
		{name: "valuation lookback too small", mutate: func(c *Config) { c.ValuationLookback = 0 }, wantErr: true},
		{name: "urgent interval longer than default", mutate: func(c *Config) { c.MonitorUrgentInterval = 5 * time.Minute }, wantErr: true},
		{name: "unknown timezone", mutate: func(c *Config) { c.LeagueTimezone = "Mars/Olympus" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.True(t, cfg.IsProduction())
}
