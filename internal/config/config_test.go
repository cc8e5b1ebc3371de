package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bhandras/kubechat/shared/logger"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envKeys {
		t.Setenv(env, "")
	}
}

func ptr[T any](v T) *T { return &v }

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Overrides{})
	require.NoError(t, err)
	require.Equal(t, ":3000", cfg.Addr)
	require.False(t, cfg.Debug)
	require.Equal(t, logger.LevelInfo, cfg.LogLevel)
	require.Empty(t, cfg.ToolsDir)
	require.Equal(t, EngineGPTScript, cfg.Engine)
	require.Equal(t, 10*time.Minute, cfg.SessionTTL)
	require.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, 10*time.Second, cfg.WriteTimeout)
	require.EqualValues(t, 1<<20, cfg.ReadLimit)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("ENGINE", "Fake")
	t.Setenv("LOG_LEVEL", "trace")
	t.Setenv("TOOLS_DIR", "/etc/kubechat/tools")
	t.Setenv("SESSION_TTL", "30s")
	t.Setenv("WS_READ_LIMIT", "4096")
	t.Setenv("GPTSCRIPT_URL", "http://127.0.0.1:9090")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GPTSCRIPT_DEFAULT_MODEL", "gpt-4o")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, EngineFake, cfg.Engine)
	require.Equal(t, logger.LevelTrace, cfg.LogLevel)
	require.Equal(t, "/etc/kubechat/tools", cfg.ToolsDir)
	require.Equal(t, 30*time.Second, cfg.SessionTTL)
	require.EqualValues(t, 4096, cfg.ReadLimit)
	require.Equal(t, GPTScriptConfig{
		URL:          "http://127.0.0.1:9090",
		OpenAIAPIKey: "sk-test",
		DefaultModel: "gpt-4o",
	}, cfg.GPTScript)
}

func TestLoad_DebugRaisesLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEBUG", "1")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)
	require.True(t, cfg.Debug)
	require.Equal(t, logger.LevelDebug, cfg.LogLevel)

	// An explicit level wins over DEBUG.
	cfg, err = Load(Overrides{LogLevel: ptr("warn")})
	require.NoError(t, err)
	require.Equal(t, logger.LevelWarn, cfg.LogLevel)
}

func TestLoad_OverridesWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("ENGINE", "gptscript")

	cfg, err := Load(Overrides{
		Addr:     ptr("127.0.0.1:4000"),
		Debug:    ptr(true),
		ToolsDir: ptr("./tools"),
		Engine:   ptr("fake"),
	})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:4000", cfg.Addr)
	require.True(t, cfg.Debug)
	require.Equal(t, "./tools", cfg.ToolsDir)
	require.Equal(t, EngineFake, cfg.Engine)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kubechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
engine: fake
session_ttl: 2m
gptscript:
  default_model: gpt-4o-mini
websocket:
  write_timeout: 3s
`), 0o600))

	cfg, err := Load(Overrides{ConfigFile: ptr(path)})
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, EngineFake, cfg.Engine)
	require.Equal(t, 2*time.Minute, cfg.SessionTTL)
	require.Equal(t, "gpt-4o-mini", cfg.GPTScript.DefaultModel)
	require.Equal(t, 3*time.Second, cfg.WriteTimeout)

	// The environment wins over the file.
	t.Setenv("PORT", "7000")
	cfg, err = Load(Overrides{ConfigFile: ptr(path)})
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		over Overrides
	}{
		{name: "bad port", env: map[string]string{"PORT": "http"}},
		{name: "bad engine", env: map[string]string{"ENGINE": "openai"}},
		{name: "bad level", over: Overrides{LogLevel: ptr("loud")}},
		{name: "zero ttl", env: map[string]string{"SESSION_TTL": "0s"}},
		{name: "missing config file", over: Overrides{ConfigFile: ptr("/nonexistent/kubechat.yaml")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(tc.over)
			require.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "KUBECHAT_DOTENV_TEST"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-dotenv\n"), 0o600))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	require.Equal(t, "from-dotenv", os.Getenv(key))
}
