package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradewind/cmd/server/config"
	"tradewind/internal/api"
	"tradewind/internal/inventory"
	"tradewind/internal/observability"
	"tradewind/internal/orders"
	"tradewind/internal/queue"
	"tradewind/internal/realtime"

	"github.com/joho/godotenv"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	channel, cleanupChannel, err := buildSagaChannel(ctx)
	if err != nil {
		return err
	}
	defer cleanupChannel()

	stores, cleanupStores, err := buildOrderStores(ctx)
	if err != nil {
		return err
	}
	defer cleanupStores()

	invClient, err := buildInventoryClient()
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	go hub.Run()
	notifier := realtime.NewNotifier(hub, log.Printf)

	metrics := observability.NewMetrics()

	service := orders.NewService(stores.Orders, channel, notifier)
	sagaHandler := orders.NewSagaHandler(stores.Sagas, stores.Orders, stores.SubmitTx, invClient, notifier, log.Printf)
	sagaHandler.SetMetrics(metrics)

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- channel.Consume(ctx, queue.Pump(channel, sagaHandler.Handle))
	}()

	httpCfg, err := config.LoadHTTP()
	if err != nil {
		return err
	}
	limiter := newHTTPRateLimiter(httpCfg.RateLimitInterval, httpCfg.RateLimitBurst, metrics.AddRateLimitWait)
	router := api.NewRouter(api.NewHandler(service, hub, log.Printf))
	srv := &http.Server{
		Addr:    httpCfg.Addr,
		Handler: rateLimitMiddleware(limiter, metrics)(router),
	}

	obsSrv, err := startObservabilityServer(metrics)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	log.Printf("order service listening on %s", httpCfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if obsSrv != nil {
			_ = obsSrv.Shutdown(shutdownCtx)
		}
		return nil
	case err := <-errCh:
		return err
	case err := <-consumeErr:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// buildInventoryClient wires the outbound inventory adapter: an HTTP client
// when INVENTORY_URL is set, otherwise the in-memory client, both wrapped
// with the env-configured reliability layer.
func buildInventoryClient() (inventory.Client, error) {
	cfg, err := inventory.LoadReliabilityConfig()
	if err != nil {
		return nil, err
	}

	var base inventory.Client
	if url := strings.TrimSpace(os.Getenv("INVENTORY_URL")); url != "" {
		base = inventory.NewHTTPClient(url, nil)
	} else {
		log.Printf("INVENTORY_URL not set, using in-memory inventory client")
		base = inventory.NewMemoryClient()
	}
	return cfg.Build(base), nil
}

func startObservabilityServer(metrics *observability.Metrics) (*http.Server, error) {
	cfg, err := config.LoadObservability()
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("observability server error: %v", err)
		}
	}()

	return srv, nil
}
