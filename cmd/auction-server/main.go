package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/nftauction/config"
	"github.com/cloudx-io/nftauction/logger"
	"github.com/cloudx-io/nftauction/market"
	"github.com/cloudx-io/nftauction/metrics"
	"github.com/cloudx-io/nftauction/receipt"
	"github.com/cloudx-io/nftauction/server"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envFileFlag := flag.String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	verboseFlag := flag.BoolP("verbose", "v", false, "Enable verbose (debug) logging")
	listenFlag := flag.String("listen", "", "Override AUCTION_LISTEN (tcp://host:port or vsock://port)")
	metricsAddrFlag := flag.String("metrics-addr", "", "Override AUCTION_METRICS_ADDR")
	maxWorkersFlag := flag.Int("max-workers", 0, "Override AUCTION_MAX_WORKERS")
	receiptKeyFlag := flag.String("receipt-key", "", "Override AUCTION_RECEIPT_KEY")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 30*time.Second, "Maximum time to wait for the metrics server to stop")
	flag.Parse()

	// Flags override the environment; AUCTION_MAX_WORKERS is required
	// unless --max-workers is given.
	if *maxWorkersFlag > 0 {
		if err := os.Setenv("AUCTION_MAX_WORKERS", fmt.Sprint(*maxWorkersFlag)); err != nil {
			return err
		}
	}

	cfg, err := config.Load(*envFileFlag)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *listenFlag != "" {
		cfg.Listen = *listenFlag
	}
	if flag.CommandLine.Changed("metrics-addr") {
		cfg.MetricsAddr = *metricsAddrFlag
	}
	if *receiptKeyFlag != "" {
		cfg.ReceiptKey = *receiptKeyFlag
	}

	log := logger.New(*verboseFlag || cfg.Verbose)
	clock := clockwork.NewRealClock()

	signer, created, err := receipt.LoadOrCreateSigner(cfg.ReceiptKey, clock)
	if err != nil {
		return fmt.Errorf("failed to initialize receipt signer: %w", err)
	}
	publicKeyPEM, err := signer.PublicKeyPEM()
	if err != nil {
		return err
	}
	log.Info("receipt signer initialized",
		"path", cfg.ReceiptKey,
		"created", created,
		"key_id", signer.KeyID())
	log.Debug("receipt public key", "pem", publicKeyPEM)

	m, err := market.New(cfg.Market(log, clock))
	if err != nil {
		return fmt.Errorf("failed to create market: %w", err)
	}

	srv, err := server.New(server.Config{
		Logger:     log,
		Clock:      clock,
		Market:     m,
		Signer:     signer,
		MaxWorkers: cfg.MaxWorkers,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	listener, err := server.Listen(cfg.Listen)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	var metricsListener net.Listener
	if cfg.MetricsAddr != "" {
		metricsListener, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to start prometheus metrics server listener: %w", err)
		}
		log.Info("prometheus metrics server listening", "address", metricsListener.Addr().String())
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(ctx, listener)
	})

	if metricsListener != nil {
		httpServer := &http.Server{
			Handler:           newRouter(signer),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := httpServer.Serve(metricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeoutFlag)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	log.Info("auction server started",
		"version", version,
		"listen", cfg.Listen,
		"max_workers", cfg.MaxWorkers,
		"payment_tokens", len(cfg.PaymentTokens),
		"collections", len(cfg.Collections))

	err = g.Wait()
	log.Info("auction server stopped", "error", err)
	return err
}

func newRouter(signer *receipt.Signer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/receipt-key", func(w http.ResponseWriter, _ *http.Request) {
		pemStr, err := signer.PublicKeyPEM()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-pem-file")
		_, _ = w.Write([]byte(pemStr))
	})
	return r
}
