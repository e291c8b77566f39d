package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ktmouritzen-byte/Lectioskema/internal/config"
	"github.com/ktmouritzen-byte/Lectioskema/internal/feed"
	appLog "github.com/ktmouritzen-byte/Lectioskema/internal/log"
	"github.com/ktmouritzen-byte/Lectioskema/internal/web"
)

var version = "0.2.0"

var (
	flagConfig string
	flagDebug  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lectioskema",
		Short:         "Convert Lectio schedule and assignment HTML into iCalendar feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				appLog.SetLevel(appLog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "lectioskema.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(newSyncCmd())
	root.AddCommand(newDaemonCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newSyncCmd() *cobra.Command {
	var (
		flagToday         string
		flagEmitCancelled bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Generate all configured feeds once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagEmitCancelled {
				cfg.EmitCancelled = true
			}

			gen := feed.New(cfg)
			if flagToday != "" {
				loc, lerr := cfg.Location()
				if lerr != nil {
					return lerr
				}
				today, terr := time.ParseInLocation("2006-01-02", flagToday, loc)
				if terr != nil {
					return fmt.Errorf("invalid --today value (want YYYY-MM-DD): %w", terr)
				}
				gen.Today = today
			}

			return gen.RunAll(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&flagToday, "today", "", "reference date for filtering (YYYY-MM-DD; defaults to now)")
	cmd.Flags().BoolVar(&flagEmitCancelled, "emit-cancelled", false, "emit cancelled activities with STATUS:CANCELLED instead of dropping them")
	return cmd
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Regenerate feeds on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return feed.New(cfg).RunDaemon(ctx)
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the generated feeds over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return web.StartServer(ctx, cfg)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("lectioskema " + version)
		},
	}
}
