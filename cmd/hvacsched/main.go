package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hvacsched/internal/config"
	"hvacsched/internal/engine"
	appLog "hvacsched/internal/log"
	"hvacsched/internal/occurrence"
	"hvacsched/internal/solar"
	"hvacsched/internal/store"
)

const version = "0.3.0"

type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "hvacsched",
		Short:        "HVAC schedule engine: recurrence expansion, overlap checks and actions",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", opts.configPath, err)
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			if err := appLog.Setup(appLog.Level(cfg.Log.Level), cfg.Log.Format); err != nil {
				return err
			}
			opts.cfg = cfg
			appLog.Debug("effective config",
				"config_path", opts.configPath,
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"storage", cfg.Storage.Driver,
				"scan_years", cfg.Overlap.ScanYears,
				"mqtt", cfg.MQTT.Broker != "",
				"backup_cron", cfg.Backup.Cron,
			)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "/etc/hvacsched/config.yaml", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCommand(opts),
		newOccurrencesCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newICSCommand(opts),
	)
	return cmd
}

// app bundles what every subcommand needs: the store, the engine over it
// and the device's wall-clock zone.
type app struct {
	cfg   *config.Config
	store store.Store
	eng   *engine.Engine
	loc   *time.Location
	sun   occurrence.SunFunc
}

func openApp(ctx context.Context, cfg *config.Config, opts ...engine.Option) (*app, error) {
	st, err := store.Open(ctx, cfg.Storage, appLog.L())
	if err != nil {
		return nil, err
	}

	base := []engine.Option{
		engine.WithLogger(appLog.L().Named("engine")),
		engine.WithScanYears(cfg.Overlap.ScanYears),
	}
	eng, err := engine.Open(ctx, st, append(base, opts...)...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	loc := loadLocation(cfg.Timezone)
	calc := solar.Calculator{
		Latitude:  cfg.Device.Location.Latitude,
		Longitude: cfg.Device.Location.Longitude,
		Location:  loc,
	}
	return &app{cfg: cfg, store: st, eng: eng, loc: loc, sun: calc.Event}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		appLog.Error("closing store failed", err)
	}
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
