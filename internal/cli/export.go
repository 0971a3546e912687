package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/export"
	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

func newExportCmd(g *globals) *cobra.Command {
	var (
		format, output string
		from, to       string
	)
	cmd := &cobra.Command{
		Use:       "export <entries|tasks>",
		Short:     "Export time entries or tasks as CSV or JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"entries", "tasks"},
		Example: `  worklog export entries --from 2025-03-01 --to 2025-03-31 -o march.csv
  worklog export tasks --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("format %q: want csv or json", format)
			}
			filter, err := entryFilter(from, to)
			if err != nil {
				return err
			}
			return g.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				write, err := exporter(ctx, svc, args[0], format, filter)
				if err != nil {
					return err
				}
				if output == "" {
					return write(out(cmd))
				}
				if err := export.ToFile(output, write); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", output)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "csv", "csv or json")
	f.StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	f.StringVar(&from, "from", "", "first day of entries to include (YYYY-MM-DD)")
	f.StringVar(&to, "to", "", "last day of entries to include (YYYY-MM-DD)")
	return cmd
}

// entryFilter turns an inclusive day range into start-time bounds.
func entryFilter(from, to string) (store.EntryFilter, error) {
	var f store.EntryFilter
	if from != "" {
		d, err := time.Parse(store.DateLayout, from)
		if err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
		f.From = &d
	}
	if to != "" {
		d, err := time.Parse(store.DateLayout, to)
		if err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
		end := d.AddDate(0, 0, 1)
		f.To = &end
	}
	return f, nil
}

func exporter(ctx context.Context, svc *service.Service, what, format string, f store.EntryFilter) (func(io.Writer) error, error) {
	now := time.Now()
	switch what {
	case "entries":
		rows, err := svc.Entries(ctx, f)
		if err != nil {
			return nil, err
		}
		if format == "json" {
			return func(w io.Writer) error { return export.EntriesJSON(w, rows, now) }, nil
		}
		return func(w io.Writer) error { return export.EntriesCSV(w, rows) }, nil
	case "tasks":
		tasks, err := svc.AllTasks(ctx)
		if err != nil {
			return nil, err
		}
		if format == "json" {
			return func(w io.Writer) error { return export.TasksJSON(w, tasks, now) }, nil
		}
		return func(w io.Writer) error { return export.TasksCSV(w, tasks) }, nil
	}
	return nil, fmt.Errorf("unknown export %q: want entries or tasks", what)
}
