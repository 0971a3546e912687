package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/service"
)

func newLogCmd(g *globals) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "log [date]",
		Short: "Show or annotate a day's log",
		Long: `Show the daily log for date (YYYY-MM-DD, default today).

With --notes the day's notes are replaced before the log is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				date := svc.Today()
				if len(args) == 1 {
					date = args[0]
				}
				var (
					v   *service.DailyLogView
					err error
				)
				if cmd.Flags().Changed("notes") {
					v, err = svc.SetNotes(ctx, date, notes)
				} else {
					v, err = svc.DailyLog(ctx, date)
				}
				if err != nil {
					return err
				}
				printLog(cmd, v)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "replace the day's notes")
	return cmd
}

func printLog(cmd *cobra.Command, v *service.DailyLogView) {
	w := out(cmd)
	fmt.Fprintf(w, "%s  %d min  score %d\n", v.Date, v.TotalTime, v.ProductivityScore)
	if len(v.TasksWorkedOn) > 0 {
		fmt.Fprintln(w, "\nWorked on:")
		for _, t := range v.TasksWorkedOn {
			fmt.Fprintf(w, "  %-40s %4d min\n", t.Title, t.TimeSpent)
		}
	}
	if len(v.TasksCompleted) > 0 {
		fmt.Fprintln(w, "\nCompleted:")
		for _, t := range v.TasksCompleted {
			fmt.Fprintf(w, "  %s\n", t.Title)
		}
	}
	if v.Notes != "" {
		fmt.Fprintf(w, "\nNotes:\n%s\n", v.Notes)
	}
}
