package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/service"
)

func newTaskCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create and list tasks",
	}

	var (
		parent, category, priority, deadline string
		estimate                             int64
		tags                                 []string
	)
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			in := service.TaskInput{Title: &title, Tags: &tags}
			flags := cmd.Flags()
			if flags.Changed("parent") {
				in.ParentID = &parent
			}
			if flags.Changed("category") {
				in.Category = &category
			}
			if flags.Changed("priority") {
				in.Priority = &priority
			}
			if flags.Changed("deadline") {
				in.Deadline = &deadline
			}
			if flags.Changed("estimate") {
				in.EstimatedTime = &estimate
			}
			return g.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				n, err := svc.CreateTask(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintln(out(cmd), n.ID)
				return nil
			})
		},
	}
	f := add.Flags()
	f.StringVarP(&parent, "parent", "p", "", "parent task id")
	f.StringVarP(&category, "category", "c", "", "category name")
	f.StringVar(&priority, "priority", "medium", "low, medium or high")
	f.StringVar(&deadline, "deadline", "", "due date (YYYY-MM-DD)")
	f.Int64Var(&estimate, "estimate", 0, "estimated minutes")
	f.StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")

	var status string
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "Show the task tree",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				var (
					nodes []service.TaskNode
					err   error
				)
				if status != "" {
					nodes, err = svc.TasksByStatus(ctx, status)
				} else {
					nodes, err = svc.Hierarchy(ctx)
				}
				if err != nil {
					return err
				}
				if len(nodes) == 0 {
					fmt.Fprintln(out(cmd), "No tasks")
					return nil
				}
				printTree(out(cmd), nodes, 0, status == "")
				return nil
			})
		},
	}
	ls.Flags().StringVarP(&status, "status", "s", "", "only tasks with this status, at any depth")

	cmd.AddCommand(add, ls)
	return cmd
}

func printTree(w io.Writer, nodes []service.TaskNode, depth int, recurse bool) {
	for _, n := range nodes {
		mark := " "
		switch {
		case n.IsOverdue:
			mark = "!"
		case n.IsDueSoon:
			mark = "~"
		}
		fmt.Fprintf(w, "%s%s %s  %s  [%s/%s] %d min %d%%\n",
			strings.Repeat("  ", depth), mark, n.ID, n.Title,
			n.Category, n.Status, n.TotalTime, n.Progress)
		if recurse {
			printTree(w, n.Children, depth+1, recurse)
		}
	}
}
