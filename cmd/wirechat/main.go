package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/config"
	wclog "github.com/vovakirdan/wirechat-client/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "wirechat [username]",
		Short:         "Terminal client for WireChat",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				overrides.Username = args[0]
			}
			return run(cmd.Context(), configPath, overrides)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config file")
	flags.StringVar(&overrides.ServerURL, "server", "", "websocket URL of the chat server")
	flags.StringVarP(&overrides.Username, "user", "u", "", "username to connect with")
	flags.StringVar(&overrides.Token, "token", "", "bearer token sent when connecting")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	flags.StringVar(&overrides.LogFile, "log-file", "", "file to write logs to")
	flags.StringVar(&overrides.DBPath, "db", "", "path to the preferences database")
	flags.StringVar(&overrides.StatusAddr, "status-addr", "", "serve status and metrics on this address")
	flags.BoolVar(&overrides.Protocol.LegacyNames, "legacy-names", false, "use legacy event names on the wire")
	return cmd
}

func run(ctx context.Context, configPath string, overrides config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLog := wclog.New("info", os.Stderr)
	cfg, path, err := config.Load(bootLog, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wirechat: %v\n", err)
		return err
	}
	cfg.UpdateFrom(overrides)

	// stdout belongs to the chat, logs go to a file.
	logFile, err := wclog.OpenFile(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wirechat: open log file: %v\n", err)
		return err
	}
	defer logFile.Close()
	logger := wclog.New(cfg.LogLevel, logFile)
	logger.Info().Str("config", path).Str("server", cfg.ServerURL).Msg("starting wirechat client")

	application, err := app.New(&cfg, logger, os.Stdin, os.Stdout)
	if err != nil {
		logger.Error().Err(err).Msg("init failed")
		fmt.Fprintf(os.Stderr, "wirechat: %v\n", err)
		return err
	}
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("client exited with error")
		fmt.Fprintf(os.Stderr, "wirechat: %v\n", err)
		return err
	}
	logger.Info().Msg("client stopped")
	return nil
}
