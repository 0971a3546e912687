// Package cli wires the worklog commands: the terminal UI, the HTTP server
// and one-shot tracking, task, log and export commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/config"
	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/tenant"
	"github.com/sadopc/worklog/internal/tui"
)

// globals holds the persistent flags and the config they override.
type globals struct {
	dataDir   string
	user      string
	logLevel  string
	logFormat string

	cfg *config.Config
}

// Execute runs the root command.
func Execute(version string) error {
	cmd := newRootCmd(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newRootCmd(version string) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "worklog",
		Short: "Hierarchical task and time tracking",
		Long: `worklog tracks time against a tree of tasks.

Time recorded on a subtask rolls up into every ancestor, and each day keeps a
log of what was worked on and completed. Without a subcommand it opens the
terminal UI.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: g.load,
		RunE:              g.runTUI,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.dataDir, "data-dir", "", "data directory (overrides WORKLOG_DATA_DIR)")
	pf.StringVarP(&g.user, "user", "u", "", "user whose worklog to use (overrides WORKLOG_DEFAULT_USER)")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "", "text or json")

	root.AddCommand(
		newServeCmd(g),
		newTrackCmd(g),
		newTaskCmd(g),
		newLogCmd(g),
		newExportCmd(g),
	)
	return root
}

// load reads the environment, then applies any flags the user set.
func (g *globals) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = g.dataDir
	}
	if flags.Changed("user") {
		cfg.DefaultUser = g.user
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = g.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}

func (g *globals) registry(log *slog.Logger, opts ...func(*tenant.Options)) *tenant.Registry {
	o := tenant.Options{
		Dir:          g.cfg.UsersDir(),
		TickInterval: g.cfg.TickInterval,
		Logger:       log,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return tenant.New(o)
}

// withService opens the configured user's worklog for a one-shot command.
// Open sessions are left running for the next invocation to pick up.
func (g *globals) withService(cmd *cobra.Command, fn func(context.Context, *service.Service) error) error {
	log := g.cfg.Logger(cmd.ErrOrStderr())
	reg := g.registry(log, func(o *tenant.Options) { o.TickInterval = 0 })
	defer func() {
		if err := reg.Detach(); err != nil {
			log.Error("close worklog", "err", err)
		}
	}()

	ctx := cmd.Context()
	svc, err := reg.Get(ctx, g.cfg.DefaultUser)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

func (g *globals) runTUI(cmd *cobra.Command, _ []string) error {
	log, closer, err := g.cfg.FileLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	reg := g.registry(log)
	defer func() {
		if err := reg.Detach(); err != nil {
			log.Error("close worklog", "err", err)
		}
	}()

	svc, err := reg.Get(cmd.Context(), g.cfg.DefaultUser)
	if err != nil {
		return err
	}
	log.Info("starting terminal UI", "user", g.cfg.DefaultUser, "data_dir", g.cfg.DataDir)
	return tui.Run(svc)
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
