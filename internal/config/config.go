package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/bhandras/kubechat/shared/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EngineGPTScript runs chats against a GPTScript server.
	EngineGPTScript = "gptscript"
	// EngineFake runs chats against the in-memory fake engine.
	EngineFake = "fake"

	defaultPort            = 3000
	defaultSessionTTL      = 10 * time.Minute
	defaultShutdownTimeout = 15 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultReadLimit       = 1 << 20
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr     string
	Debug    bool
	LogLevel logger.Level
	// ToolsDir holds the tool instruction files. Empty selects the built-in
	// instructions.
	ToolsDir string
	// Engine selects the run engine, EngineGPTScript or EngineFake.
	Engine    string
	GPTScript GPTScriptConfig
	// SessionTTL is how long a session whose initialization failed waits for
	// a retry before it is evicted.
	SessionTTL      time.Duration
	ShutdownTimeout time.Duration
	WriteTimeout    time.Duration
	ReadLimit       int64
	AllowedOrigins  []string
}

// GPTScriptConfig configures the GPTScript engine.
type GPTScriptConfig struct {
	URL           string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	DefaultModel  string
}

// Overrides optionally overrides values from the config file and
// environment variables.
//
// A nil pointer means "use the file/environment/default value".
type Overrides struct {
	// ConfigFile names an optional yaml, toml or json config file.
	ConfigFile *string
	Addr       *string
	Debug      *bool
	LogLevel   *string
	ToolsDir   *string
	Engine     *string
}

// Config keys and the environment variables bound to them.
var envKeys = map[string]string{
	"port":                      "PORT",
	"debug":                     "DEBUG",
	"log_level":                 "LOG_LEVEL",
	"tools_dir":                 "TOOLS_DIR",
	"engine":                    "ENGINE",
	"gptscript.url":             "GPTSCRIPT_URL",
	"gptscript.openai_api_key":  "OPENAI_API_KEY",
	"gptscript.openai_base_url": "OPENAI_BASE_URL",
	"gptscript.default_model":   "GPTSCRIPT_DEFAULT_MODEL",
	"session_ttl":               "SESSION_TTL",
	"shutdown_timeout":          "SHUTDOWN_TIMEOUT",
	"websocket.write_timeout":   "WS_WRITE_TIMEOUT",
	"websocket.read_limit":      "WS_READ_LIMIT",
	"allowed_origins":           "ALLOWED_ORIGINS",
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load loads server configuration from the optional config file and
// environment variables and applies any explicit overrides.
func Load(overrides Overrides) (*Config, error) {
	v := viper.New()
	v.SetDefault("port", defaultPort)
	v.SetDefault("engine", EngineGPTScript)
	v.SetDefault("session_ttl", defaultSessionTTL)
	v.SetDefault("shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("websocket.write_timeout", defaultWriteTimeout)
	v.SetDefault("websocket.read_limit", defaultReadLimit)
	v.SetDefault("allowed_origins", []string{"*"})

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if overrides.ConfigFile != nil && *overrides.ConfigFile != "" {
		v.SetConfigFile(*overrides.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	port := v.GetString("port")
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("invalid port %q", port)
	}
	addr := ":" + port
	if overrides.Addr != nil {
		addr = *overrides.Addr
	}

	debug := v.GetBool("debug")
	if overrides.Debug != nil {
		debug = *overrides.Debug
	}

	rawLevel := v.GetString("log_level")
	if overrides.LogLevel != nil {
		rawLevel = *overrides.LogLevel
	}
	level := logger.LevelInfo
	if debug {
		level = logger.LevelDebug
	}
	if rawLevel != "" {
		parsed, err := logger.ParseLevel(rawLevel)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	toolsDir := v.GetString("tools_dir")
	if overrides.ToolsDir != nil {
		toolsDir = *overrides.ToolsDir
	}

	engine := strings.ToLower(strings.TrimSpace(v.GetString("engine")))
	if overrides.Engine != nil {
		engine = strings.ToLower(strings.TrimSpace(*overrides.Engine))
	}
	if engine != EngineGPTScript && engine != EngineFake {
		return nil, fmt.Errorf("unknown engine %q (want %s or %s)", engine, EngineGPTScript, EngineFake)
	}

	sessionTTL := v.GetDuration("session_ttl")
	if sessionTTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", sessionTTL)
	}

	readLimit := v.GetInt64("websocket.read_limit")
	if readLimit <= 0 {
		return nil, fmt.Errorf("websocket read limit must be positive, got %d", readLimit)
	}

	return &Config{
		Addr:     addr,
		Debug:    debug,
		LogLevel: level,
		ToolsDir: toolsDir,
		Engine:   engine,
		GPTScript: GPTScriptConfig{
			URL:           v.GetString("gptscript.url"),
			OpenAIAPIKey:  v.GetString("gptscript.openai_api_key"),
			OpenAIBaseURL: v.GetString("gptscript.openai_base_url"),
			DefaultModel:  v.GetString("gptscript.default_model"),
		},
		SessionTTL:      sessionTTL,
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		WriteTimeout:    v.GetDuration("websocket.write_timeout"),
		ReadLimit:       readLimit,
		AllowedOrigins:  v.GetStringSlice("allowed_origins"),
	}, nil
}
