package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"hvacsched/internal/backup"
	"hvacsched/internal/config"
	"hvacsched/internal/engine"
	"hvacsched/internal/ics"
	appLog "hvacsched/internal/log"
	"hvacsched/internal/model"
	"hvacsched/internal/notify"
	"hvacsched/internal/occurrence"
	"hvacsched/internal/timeutil"
	"hvacsched/internal/web"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled backups and change notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, cancel := signalContext()
			defer cancel()

			var notifier notify.Notifier = notify.Nop{}
			if cfg.MQTT.Broker != "" {
				m, err := notify.Connect(cfg.MQTT, appLog.L().Named("notify"))
				if err != nil {
					appLog.Error("mqtt unavailable; change notifications disabled", err, "broker", cfg.MQTT.Broker)
				} else {
					defer m.Close()
					notifier = m
				}
			}

			a, err := openApp(ctx, cfg, engine.WithNotifier(notifier))
			if err != nil {
				return err
			}
			defer a.Close()

			runner := backup.New(a.eng, cfg.Backup, appLog.L().Named("backup"))
			if err := runner.Start(); err != nil {
				return err
			}
			defer runner.Stop()

			appLog.Info("hvacsched starting", "version", version, "schedules", len(a.eng.Schedules()))
			err = web.NewServer(cfg, a.eng, a.sun, appLog.L().Named("web")).Run(ctx)
			appLog.Info("hvacsched exiting")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func newOccurrencesCommand(opts *rootOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "occurrences",
		Short: "List the occurrences of every schedule in a date window",
		Example: `
hvacsched occurrences
hvacsched occurrences --from 2025-01-01 --to 2025-01-31
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			today := timeutil.Day(time.Now().In(a.loc))
			if from == "" {
				from = timeutil.ToDateString(today)
			}
			if to == "" {
				to = timeutil.ToDateString(today.AddDate(0, 0, 7))
			}
			win, err := occurrence.NewWindow(from, to)
			if err != nil {
				return err
			}

			byID := make(map[string]model.Schedule)
			for _, s := range a.eng.Schedules() {
				byID[s.ID] = s
			}

			bold := color.New(color.Bold)
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.AddRow(bold.Sprint("DATE"), bold.Sprint("START"), bold.Sprint("END"), bold.Sprint("SCHEDULE"), bold.Sprint("TYPE"), bold.Sprint("ID"))
			occs := a.eng.Occurrences(win)
			for _, occ := range occs {
				s := byID[occ.ScheduleID]
				start, end, err := occurrence.Resolve(occ, s, a.sun, a.loc)
				if err != nil {
					continue
				}
				tbl.AddRow(occ.Date, start.Format("15:04"), end.Format("15:04"), occ.EventName, s.ScheduleType, occ.ScheduleID)
			}
			_, _ = fmt.Fprintln(color.Output, tbl)
			_, _ = fmt.Fprintf(color.Output, "\n%d occurrence(s) between %s and %s\n", len(occs), from, to)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&to, "to", "", "Last date (YYYY-MM-DD), default a week from today")
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the schedule set as an export document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := model.EncodeDocument(a.eng.Export())
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, data)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the schedule set with an export document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := model.DecodeDocument(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.eng.Apply(cmd.Context(), engine.Import{Schedules: doc.Schedules})
			if err != nil {
				var be *engine.BatchError
				if errors.As(err, &be) {
					for _, it := range be.Items {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  #%d: %v\n", it.Index, it.Err)
					}
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d schedule(s) from %s\n", len(res.Changed), args[0])
			return nil
		},
	}
}

func newICSCommand(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Render the schedule set as an iCalendar feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			feed := ics.Export(a.eng.Schedules(), opts.cfg.Device.Name, time.Now())
			return writeOutput(cmd.OutOrStdout(), out, []byte(feed))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := config.WriteFileAtomic(path, data, ".hvacsched-*.tmp"); err != nil {
		return err
	}
	appLog.Info("written", "path", path, "bytes", len(data))
	return nil
}
