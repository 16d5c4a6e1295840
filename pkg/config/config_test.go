package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8000, c.Server.Port)
	assert.Equal(t, 365, c.Forecast.MaxHorizon)
	assert.Equal(t, []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}, c.Artifacts.Symbols)
	assert.Equal(t, "{symbol}_lstm_model.json", c.Artifacts.ModelPattern)
	assert.Equal(t, "stock_minmax_scaler.json", c.Artifacts.GenericScaler)
	assert.Equal(t, 250, c.MarketData.DefaultLookback)
	assert.Equal(t, 60*time.Second, c.MarketData.Breaker.Interval)
	assert.False(t, c.Redis.Enabled)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
environment: staging
server:
  port: 9001
artifacts:
  dir: /srv/models
  symbols: [NVDA]
report:
  provider: gemini
`)
	t.Setenv("STOCKCAST_PORT", "9100")
	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("STOCKCAST_SYMBOLS", "AAPL,MSFT")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 9100, c.Server.Port)
	assert.Equal(t, "/srv/models", c.Artifacts.Dir)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Artifacts.Symbols)
	assert.Equal(t, "gemini", c.Report.Provider)
	assert.Equal(t, "from-env", c.Report.Groq.APIKey)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STOCKCAST_MODEL_DIR=/from/dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("STOCKCAST_MODEL_DIR") })

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", c.Artifacts.Dir)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	cases := map[string]string{
		"bad provider": "report:\n  provider: openai\n",
		"bad pattern":  "artifacts:\n  model_pattern: model.json\n",
		"collector":    "log:\n  collector:\n    enabled: true\n",
		"bad env":      "environment: moon\n",
		"malformed":    "server: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadSampleConfig(t *testing.T) {
	path, err := filepath.Abs(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	t.Chdir(t.TempDir())

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/metrics", c.Metrics.Path)
	assert.Equal(t, "stockcast.artifacts.dlq", c.Kafka.Consumer.DLQTopic)
	assert.Equal(t, 10*time.Second, c.WebSocket.WriteTimeout)
}
