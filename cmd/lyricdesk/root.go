package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lyricdesk/internal/app"
	"lyricdesk/internal/config"

	"github.com/spf13/cobra"
)

var (
	// global flags
	configPath string
	logLevel   string
	socketPath string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lyricdesk",
	Short: "synchronized desktop lyrics daemon",
	Long: `lyricdesk follows the active MPRIS player, fetches timed lyrics and
pushes the visible lyric window to GUI clients over a unix socket.

when run without a subcommand, it starts the daemon.`,
	Version:           "1.0.0",
	PersistentPreRunE: loadConfig,
	RunE:              runDaemon,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyrics/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&socketPath, "socket", "", "unix socket path for GUI clients")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// 先用默认级别，加载配置时的日志才能输出
	app.SetupLogger(logLevel)

	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		loaded.App.LogLevel = logLevel
	}
	if socketPath != "" {
		loaded.App.SocketPath = socketPath
	}
	app.SetupLogger(loaded.App.LogLevel)

	cfg = loaded
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg.Warn()

	deps, err := app.NewDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	return app.New(cfg, deps).Run(ctx)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
