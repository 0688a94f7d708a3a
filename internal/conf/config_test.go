package conf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8090", s.Listen)
	assert.True(t, s.TriggerEnabled)
	assert.Equal(t, time.Minute, s.TickInterval.Std())
	assert.Equal(t, 15*time.Second, s.FetchTimeout.Std())
	assert.Equal(t, 10*time.Second, s.DeliveryTimeout.Std())
	assert.Equal(t, 4, s.CycleConcurrency)
	assert.Equal(t, "info", s.LogLevel)
	assert.Empty(t, s.NotifyURLs)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
api_token: secret
tick_interval: 30s
cycle_concurrency: 8
notify_urls:
  - generic://webhook.local/hook
log_level: debug
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", s.Listen)
	assert.Equal(t, "secret", s.APIToken)
	assert.Equal(t, 30*time.Second, s.TickInterval.Std())
	assert.Equal(t, 8, s.CycleConcurrency)
	assert.Equal(t, []string{"generic://webhook.local/hook"}, s.NotifyURLs)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PROXYPULSE_LISTEN", ":7070")
	t.Setenv("PROXYPULSE_TICK_INTERVAL", "2m")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", s.Listen)
	assert.Equal(t, 2*time.Minute, s.TickInterval.Std())
}

func TestValidate(t *testing.T) {
	valid := Settings{
		TickInterval:     Duration(time.Minute),
		FetchTimeout:     Duration(15 * time.Second),
		DeliveryTimeout:  Duration(10 * time.Second),
		CycleConcurrency: 4,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"tick too short", func(s *Settings) { s.TickInterval = Duration(time.Millisecond) }},
		{"fetch timeout zero", func(s *Settings) { s.FetchTimeout = 0 }},
		{"delivery timeout zero", func(s *Settings) { s.DeliveryTimeout = 0 }},
		{"concurrency zero", func(s *Settings) { s.CycleConcurrency = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid
			tc.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestDurationJSON(t *testing.T) {
	b, err := json.Marshal(Duration(30 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"30s"`, string(b))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"5m"`), &d))
	assert.Equal(t, 5*time.Minute, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, d.Std())

	assert.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
}

func TestDurationYAML(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`1h30m`), &d))
	assert.Equal(t, 90*time.Minute, d.Std())

	out, err := yaml.Marshal(Duration(45 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "45s\n", string(out))
}
