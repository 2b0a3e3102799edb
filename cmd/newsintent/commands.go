package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"NewsIntent/internal/aggregate"
	"NewsIntent/internal/app"
	"NewsIntent/internal/config"
	"NewsIntent/internal/domain"
	"NewsIntent/internal/logging"
	"NewsIntent/internal/usecase"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [entity]",
		Short: "Run one batch and print the daily intent counts as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := dateFlag(cmd, "from")
			if err != nil {
				return err
			}
			end, err := dateFlag(cmd, "to")
			if err != nil {
				return err
			}
			lang, _ := cmd.Flags().GetString("lang")
			region, _ := cmd.Flags().GetString("region")
			maxResults, _ := cmd.Flags().GetInt("max")
			out, _ := cmd.Flags().GetString("out")
			summary, _ := cmd.Flags().GetBool("summary")

			application, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closeApp(application, log)

			res, runErr := application.Run(cmd.Context(), usecase.Request{
				Entity:     args[0],
				Start:      start,
				End:        end,
				Language:   lang,
				Region:     region,
				MaxResults: maxResults,
			})
			if runErr != nil && len(res.Articles) == 0 {
				return runErr
			}

			if err := writeTable(cmd, out, res.Counts); err != nil {
				return err
			}
			if summary {
				fmt.Fprintln(cmd.ErrOrStderr(), aggregate.Summary(args[0], res.Counts))
			}
			return runErr
		},
	}

	cmd.Flags().String("from", "", "earliest publication date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "latest publication date (YYYY-MM-DD)")
	cmd.Flags().String("lang", "", "feed language (default from config)")
	cmd.Flags().String("region", "", "feed region (default from config)")
	cmd.Flags().Int("max", 0, "maximum feed entries (default from config)")
	cmd.Flags().String("out", "-", "CSV output file, - for stdout")
	cmd.Flags().Bool("summary", false, "print a text digest to stderr")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [entity...]",
		Short: "Re-run the pipeline on the configured interval until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closeApp(application, log)

			return application.Watch(cmd.Context(), args, func(res usecase.Result) {
				log.Info("digest", "entity", res.Query.Entity(), "summary", aggregate.Summary(res.Query.Entity(), res.Counts))
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [entity]",
		Short: "Print stored daily intent counts as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := dateFlag(cmd, "from")
			if err != nil {
				return err
			}
			to, err := dateFlag(cmd, "to")
			if err != nil {
				return err
			}
			if from == nil || to == nil {
				return fmt.Errorf("history needs --from and --to")
			}
			out, _ := cmd.Flags().GetString("out")

			application, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closeApp(application, log)

			table, err := application.History(cmd.Context(), args[0], *from, *to)
			if err != nil {
				return err
			}
			return writeTable(cmd, out, table)
		},
	}

	cmd.Flags().String("from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().String("out", "-", "CSV output file, - for stdout")
	return cmd
}

func bootstrap(cmd *cobra.Command) (*app.Application, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	log := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	application, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return application, log, nil
}

func closeApp(application *app.Application, log *slog.Logger) {
	if err := application.Close(); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}

func dateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, raw)
	}
	return &ts, nil
}

func writeTable(cmd *cobra.Command, out string, table domain.DailyIntentCounts) error {
	var w io.Writer = cmd.OutOrStdout()
	if out != "" && out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	return aggregate.WriteCSV(w, table)
}
