package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sadopc/worklog/internal/api"
	"github.com/sadopc/worklog/internal/telemetry"
	"github.com/sadopc/worklog/internal/tenant"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		addr     string
		otlp     string
		insecure bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve the worklog JSON API over HTTP.

Each request is scoped to the user named in the X-Worklog-User header, falling
back to the default user. Active sessions are stopped on shutdown.

Examples:
  worklog serve --addr :8080
  worklog serve --otlp-endpoint localhost:4317 --otlp-insecure`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				g.cfg.Addr = addr
			}
			if cmd.Flags().Changed("otlp-endpoint") {
				g.cfg.OTLPEndpoint = otlp
			}
			if cmd.Flags().Changed("otlp-insecure") {
				g.cfg.OTLPInsecure = insecure
			}
			return g.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (overrides WORKLOG_ADDR)")
	cmd.Flags().StringVar(&otlp, "otlp-endpoint", "", "OTLP gRPC metrics endpoint (overrides WORKLOG_OTLP_ENDPOINT)")
	cmd.Flags().BoolVar(&insecure, "otlp-insecure", false, "disable TLS to the OTLP endpoint")
	return cmd
}

func (g *globals) serve(ctx context.Context) error {
	cfg := g.cfg
	log := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := telemetry.New(ctx, telemetry.Config{Endpoint: cfg.OTLPEndpoint, Insecure: cfg.OTLPInsecure})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	reg := g.registry(log, func(o *tenant.Options) { o.Observer = rec.Observer })
	srv := api.NewHTTPServer(api.Config{Addr: cfg.Addr}, api.NewRouter(reg, cfg.DefaultUser, log))

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		log.Info("listening", "addr", cfg.Addr, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "users", reg.Users())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := reg.CloseAll(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("close users: %w", err))
		}
		if err := rec.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
		return errors.Join(errs...)
	})
	return grp.Wait()
}
