package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

var errNoSession = errors.New("no active session")

func newTrackCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Start, pause, resume and stop time tracking",
	}

	var description string
	start := &cobra.Command{
		Use:   "start <task-id>",
		Short: "Start tracking a task, stopping any other session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				e, err := svc.StartTracking(ctx, args[0], description)
				if err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "Tracking %s since %s\n", e.TaskID, e.StartTime.Local().Format("15:04"))
				return nil
			})
		},
	}
	start.Flags().StringVarP(&description, "description", "d", "", "what the session is for")

	cmd.AddCommand(
		start,
		transitionCmd(g, "pause", "Pause the active session", (*service.Service).PauseTracking),
		transitionCmd(g, "resume", "Resume a paused session", (*service.Service).ResumeTracking),
		transitionCmd(g, "stop", "Stop a session and commit its time", (*service.Service).StopTracking),
		&cobra.Command{
			Use:   "status",
			Short: "Show active sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return g.withService(cmd, func(ctx context.Context, svc *service.Service) error {
					return printStatus(ctx, cmd, svc)
				})
			},
		},
	)
	return cmd
}

type transition func(*service.Service, context.Context, string) (*store.TimeEntry, error)

// transitionCmd builds pause, resume and stop. The task defaults to the
// active one.
func transitionCmd(g *globals, name, short string, fn transition) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [task-id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				var taskID string
				if len(args) == 1 {
					taskID = args[0]
				} else if id, ok := svc.ActiveTaskID(); ok {
					taskID = id
				} else {
					return errNoSession
				}

				e, err := fn(svc, ctx, taskID)
				if err != nil {
					return err
				}
				if e == nil {
					return fmt.Errorf("%s %s: %w", name, taskID, errNoSession)
				}
				switch e.State() {
				case store.EntryClosed:
					fmt.Fprintf(out(cmd), "Stopped %s after %d min\n", taskID, e.Duration)
				case store.EntryPaused:
					fmt.Fprintf(out(cmd), "Paused %s\n", taskID)
				default:
					fmt.Fprintf(out(cmd), "Resumed %s\n", taskID)
				}
				return nil
			})
		},
	}
}

func printStatus(ctx context.Context, cmd *cobra.Command, svc *service.Service) error {
	today, err := svc.Store().TrackedTotal(ctx, svc.Today())
	if err != nil {
		return err
	}
	active := svc.ActiveEntries()
	if len(active) == 0 {
		fmt.Fprintf(out(cmd), "Not tracking (%d min committed today)\n", today)
		return nil
	}
	fmt.Fprintf(out(cmd), "%d min committed today\n", today)
	tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tTITLE\tSTATE\tMINUTES")
	for _, e := range active {
		title := "?"
		if n, err := svc.GetTask(ctx, e.TaskID); err == nil {
			title = n.Title
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.TaskID, title, e.State(), svc.Tracker().CurrentDuration(e.TaskID))
	}
	return tw.Flush()
}
