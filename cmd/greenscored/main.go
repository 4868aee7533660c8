// Command greenscored serves the carbon emission ledger over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/api"
	audithook "github.com/xraph/greenscore/audit_hook"
	"github.com/xraph/greenscore/auth"
	"github.com/xraph/greenscore/export"
	"github.com/xraph/greenscore/observability"
	"github.com/xraph/greenscore/store/driver"
)

func main() {
	configPath := flag.String("config", os.Getenv("GREENSCORE_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "greenscored:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	zl, err := newZapLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := slog.New(zapslog.NewHandler(zl.Core()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := driver.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ledger := greenscore.New(s,
		greenscore.WithLogger(logger),
		greenscore.WithTTL(cfg.TTL),
		greenscore.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		greenscore.WithPlugin(audithook.New(audithook.LogRecorder(logger), audithook.WithLogger(logger))),
	)
	if err := ledger.Start(ctx); err != nil {
		_ = s.Close()
		return fmt.Errorf("start ledger: %w", err)
	}
	defer func() {
		if err := ledger.Stop(); err != nil {
			logger.Error("stop ledger", "error", err)
		}
	}()

	verifier, err := auth.NewJWTVerifier([]byte(cfg.JWT.Secret), cfg.JWT.Issuer)
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := api.New(ledger, verifier,
		api.WithLogger(logger),
		api.WithAllowOrigins(cfg.CORSOrigins...),
	).Handler()
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Export.Interval > 0 {
		exporter, err := newExporter(gctx, cfg.Export, ledger, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			exporter.Run(gctx, cfg.Export.Interval)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("greenscored listening", "addr", cfg.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newZapLogger(cfg Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newExporter(ctx context.Context, cfg ExportConfig, src export.Source, logger *slog.Logger) (*export.Exporter, error) {
	var sink export.Sink
	switch {
	case cfg.Dir != "":
		fs, err := export.NewFileSink(cfg.Dir)
		if err != nil {
			return nil, err
		}
		sink = fs
	case cfg.S3.Bucket != "":
		s3, err := export.NewS3Sink(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		sink = s3
	default:
		return nil, errors.New("export interval set but neither export.dir nor export.s3.bucket is configured")
	}
	return export.NewExporter(src, sink, export.WithPrefix(cfg.Prefix), export.WithLogger(logger)), nil
}
