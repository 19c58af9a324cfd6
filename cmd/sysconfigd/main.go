// Command sysconfigd reconciles host configuration (grub boot parameters,
// systemd limits, resolver caching, sysctl, kernel version, CPU governor,
// IRQ affinity) against a desired-state file and reports which pending
// changes still require a reboot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sysconfigd/internal/audit"
	"sysconfigd/internal/executor"
	"sysconfigd/internal/render"
	"sysconfigd/internal/store"
	"sysconfigd/internal/sysconfig"
	"sysconfigd/internal/watcher"
)

var (
	configPath  string
	statePath   string
	journalPath string
	natsURL     string
	natsBucket  string
	debug       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "sysconfigd",
		Short:        "Reconcile host configuration against a desired-state file",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/sysconfigd/config.yaml", "Path to the desired-state file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "/var/lib/sysconfigd/state.json", "Path to the local state file")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "/var/lib/sysconfigd/journal.jsonl", "Path to the reconciliation journal (empty disables)")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", "", "NATS URL for fleet-visible state (empty uses the local state file)")
	rootCmd.PersistentFlags().StringVar(&natsBucket, "nats-bucket", "sysconfigd", "NATS JetStream KV bucket name")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		applyCmd(),
		removeCmd(),
		statusCmd(),
		checkGrubUpdateCmd(),
		clearNotificationsCmd(),
		historyCmd(),
		watchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the collaborators every command needs.
type app struct {
	logger   zerolog.Logger
	db       store.Store
	boot     *sysconfig.BootResourceState
	renderer *render.Renderer
	runner   executor.Runner
	journal  *audit.Journal
}

func newApp(ctx context.Context) (*app, error) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	var db store.Store
	var err error
	if natsURL != "" {
		db, err = store.OpenNATSStore(ctx, natsURL, natsBucket)
	} else {
		db, err = store.OpenFileStore(statePath)
	}
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	renderer, err := render.New()
	if err != nil {
		db.Close()
		return nil, err
	}

	journal, err := audit.NewJournal(journalPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		logger:   logger,
		db:       db,
		boot:     sysconfig.NewBootResourceState(db, logger),
		renderer: renderer,
		runner:   executor.NewLocalRunner(logger),
		journal:  journal,
	}, nil
}

func (a *app) close() {
	if err := a.journal.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close journal")
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close state store")
	}
}

// reconciler loads the desired-state file and assembles a reconciler for it.
func (a *app) reconciler() (*sysconfig.Reconciler, error) {
	cfg, err := sysconfig.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	return sysconfig.NewReconciler(sysconfig.ReconcilerConfig{
		Config:   cfg,
		Boot:     a.boot,
		Renderer: a.renderer,
		Runner:   a.runner,
		Paths:    sysconfig.DefaultPaths(),
		Journal:  a.journal,
		Logger:   a.logger,
	}), nil
}

func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Reconcile all managed resources against the desired state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			rec, err := app.reconciler()
			if err != nil {
				return err
			}
			if err := rec.Apply(cmd.Context()); err != nil {
				return err
			}

			status, err := rec.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", status.State, status.Message)
			return nil
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Revert managed resources to their unconfigured rendering",
		Long: `Revert managed resources to their unconfigured rendering.
Kernels installed by previous reconciliations are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			rec, err := app.reconciler()
			if err != nil {
				return err
			}
			return rec.Remove(cmd.Context())
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report pending changes that require a reboot or acknowledgment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			rec, err := app.reconciler()
			if err != nil {
				return err
			}
			status, err := rec.Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("%s: %s\n", status.State, status.Message)
			return nil
		},
	}
}

func checkGrubUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-grub-update",
		Short: "Check whether the generated grub config would change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			rec, err := app.reconciler()
			if err != nil {
				return err
			}

			_, message := rec.CheckGrubUpdate(cmd.Context())
			fmt.Println(message)
			return nil
		},
	}
}

func clearNotificationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-notifications",
		Short: "Acknowledge all pending change notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			at, err := app.boot.ClearNotifications(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Notifications cleared at %s\n", at.Format(time.RFC3339))
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the reconciliation journal",
		RunE: func(_ *cobra.Command, _ []string) error {
			entries, err := audit.Read(journalPath)
			if err != nil {
				return err
			}

			for _, e := range entries {
				line := fmt.Sprintf("%s %s %s changed=%t", e.Timestamp, e.Action, e.Resource, e.Changed)
				if e.Error != "" {
					line += " error=" + e.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Apply once, then re-apply whenever the desired-state file changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			runApply := func() {
				rec, err := app.reconciler()
				if err != nil {
					app.logger.Error().Err(err).Msg("load desired state")
					return
				}
				if err := rec.Apply(ctx); err != nil {
					app.logger.Error().Err(err).Msg("reconciliation failed")
				}
				if err := app.db.Flush(ctx); err != nil {
					app.logger.Error().Err(err).Msg("flush state store")
				}
			}

			runApply()

			w, err := watcher.New(configPath, runApply, app.logger)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			<-ctx.Done()
			app.logger.Info().Msg("shutting down")
			return nil
		},
	}
}
