package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"scalable-rag-engine/internal/infra/api"
	pg "scalable-rag-engine/internal/infra/db/postgres"
	"scalable-rag-engine/internal/infra/metrics"
	"scalable-rag-engine/internal/infra/worker"
)

const shutdownTimeout = 15 * time.Second

var metricsPort int

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the HTTP API",
	Long: `Serve the HTTP API: POST /ingest-url, POST /query, GET /jobs/{id},
GET / and GET /metrics. The schema is applied on startup.`,
	Args: cobra.NoArgs,
	RunE: runAPI,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume ingestion tasks",
	Long: `Consume process_url_task deliveries and run the ingestion pipeline.
Deliveries left in flight by a previous run of the same worker id are
requeued on startup.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "serve /metrics on this port (0 disables)")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runAPI(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{withGenerator: true, migrate: true})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := api.NewServer(a.submission, a.query, cfg.HTTP.RequestTimeout, logger)
	httpSrv := api.NewHTTPServer(cfg.HTTP.Port, srv.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpSrv.Addr).Msg("http api listening")
		return listen(httpSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpSrv, logger)
	})
	g.Go(func() error {
		pg.ReportPoolStats(gctx, a.pool, 0)
		return nil
	})
	return g.Wait()
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{withIndex: true})
	if err != nil {
		return err
	}
	defer a.Close()

	consumer := worker.NewConsumer(a.queue, a.ingestion, worker.ConsumerConfig{
		Concurrency:   cfg.Worker.Concurrency,
		ConsumerID:    cfg.Worker.ConsumerID,
		MaxDeliveries: cfg.Queue.MaxDeliveries,
		RequeueDelay:  cfg.Queue.RequeueDelay,

		MaxClaimRetries: cfg.Queue.MaxClaimRetries,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error {
		pg.ReportPoolStats(gctx, a.pool, 0)
		return nil
	})
	if metricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		msrv := api.NewHTTPServer(metricsPort, mux)
		g.Go(func() error { return listen(msrv) })
		g.Go(func() error {
			<-gctx.Done()
			return shutdown(msrv, logger)
		})
	}
	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdown(srv *http.Server, log *zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info().Str("addr", srv.Addr).Msg("shutting down http server")
	return srv.Shutdown(ctx)
}
