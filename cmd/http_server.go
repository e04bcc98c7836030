package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/frahmantamala/merchant-settlement/api"
	"github.com/frahmantamala/merchant-settlement/internal/catalog"
	"github.com/frahmantamala/merchant-settlement/internal/ledger"
	"github.com/frahmantamala/merchant-settlement/internal/merchant"
	"github.com/frahmantamala/merchant-settlement/internal/payment"
	"github.com/frahmantamala/merchant-settlement/internal/settlement"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
	"github.com/frahmantamala/merchant-settlement/internal/transport/rest"
	"github.com/frahmantamala/merchant-settlement/internal/withdrawal"
	"github.com/frahmantamala/merchant-settlement/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests. With settlement.run_in_server the release scheduler and withdrawal reconciler run in the same process.`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.LoggerWrapper()

	app, err := newApplication(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.memory != nil {
		seedMemory(app)
	}

	router := chi.NewRouter()
	if err := setupRoutes(app, router); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var background sync.WaitGroup
	if cfg.Settlement.RunInServer {
		background.Add(2)
		go func() {
			defer background.Done()
			_ = app.scheduler.Run(ctx)
		}()
		go func() {
			defer background.Done()
			_ = app.reconciler.Run(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", addr, "storage", storage, "background_jobs", cfg.Settlement.RunInServer)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down...", "signal", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
		}
	}

	cancel()
	background.Wait()
	log.Info("Server stopped")
}

func setupRoutes(app *application, router *chi.Mux) error {
	base := transport.NewBaseHandler(app.logger)

	metricsPath := ""
	if app.config.Observability.Metrics.Enabled {
		metricsPath = app.config.Observability.Metrics.Path
	}

	return rest.RegisterAllRoutes(router, rest.RouterConfig{
		AllowedOrigins: app.config.Server.Origins(),
		RequestTimeout: app.config.Server.RequestTimeout,
		OpenAPISpec:    api.Spec,
		MetricsPath:    metricsPath,
		Metrics:        app.metrics,
	}, rest.Handlers{
		Health:     rest.NewHealthHandler(base, app.healthChecks()),
		Payment:    payment.NewHandler(base, app.payments),
		Catalog:    catalog.NewHandler(base, app.catalog),
		Ledger:     ledger.NewHandler(base, app.ledger),
		Withdrawal: withdrawal.NewHandler(base, app.withdrawal),
		Settlement: settlement.NewHandler(base, app.settlement),
		Merchant:   merchant.NewHandler(base, app.merchants),
	}, app.auth, app.logger)
}
