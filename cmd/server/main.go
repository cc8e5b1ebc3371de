package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/bhandras/kubechat/internal/config"
	"github.com/bhandras/kubechat/internal/version"
	"github.com/bhandras/kubechat/shared/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		addr       string
		logLevel   string
		toolsDir   string
		engine     string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:          "kubechat-server",
		Short:        "Relay browser chat sessions to a GPTScript engine over WebSocket",
		Version:      version.String(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}

			var overrides config.Overrides
			flags := cmd.Flags()
			if flags.Changed("config") {
				overrides.ConfigFile = &configFile
			}
			if flags.Changed("addr") {
				overrides.Addr = &addr
			}
			if flags.Changed("log-level") {
				overrides.LogLevel = &logLevel
			}
			if flags.Changed("tools-dir") {
				overrides.ToolsDir = &toolsDir
			}
			if flags.Changed("engine") {
				overrides.Engine = &engine
			}
			if flags.Changed("debug") {
				overrides.Debug = &debug
			}

			cfg, err := config.Load(overrides)
			if err != nil {
				logger.Errorf("Failed to load config: %v", err)
				return err
			}
			logger.SetLevel(cfg.LogLevel)
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a yaml, toml or json config file")
	flags.StringVar(&addr, "addr", "", "listen address (overrides PORT)")
	flags.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn or error")
	flags.StringVar(&toolsDir, "tools-dir", "", "directory with tool instruction files")
	flags.StringVar(&engine, "engine", "", "run engine: gptscript or fake")
	flags.BoolVar(&debug, "debug", false, "enable debug logging and gin debug mode")

	return cmd
}
