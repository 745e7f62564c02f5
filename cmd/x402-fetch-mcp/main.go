// Command x402-fetch-mcp serves the fetch and walletInfo tools over MCP stdio.
//
// Configuration is read from the environment and an optional .env file:
//
//	EVM_PRIVATE_KEY     hex private key of the paying wallet (required; PRIVATE_KEY also accepted)
//	X402_NETWORK        base-sepolia (default) or base
//	X402_MAX_PAYMENT    spend ceiling per request in the asset's smallest unit (default 1000000)
//	X402_FETCH_TIMEOUT  timeout of each HTTP request (default 30s)
//	LOG_LEVEL           debug, info, warn or error (default info)
//	METRICS_ADDR        listen address for Prometheus /metrics (disabled when empty)
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-fetch"
	"github.com/x402-foundation/x402-fetch/config"
	x402http "github.com/x402-foundation/x402-fetch/http"
	"github.com/x402-foundation/x402-fetch/mcp"
	"github.com/x402-foundation/x402-fetch/mechanisms/evm"
	"github.com/x402-foundation/x402-fetch/observe"
	evmsigners "github.com/x402-foundation/x402-fetch/signers/evm"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "x402-fetch-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observe.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	signer, err := evmsigners.NewClientSignerFromPrivateKey(cfg.PrivateKey)
	if err != nil {
		return x402.WrapPaymentError(x402.ErrCodeConfig, "invalid "+config.EnvPrivateKey, err)
	}

	metrics := observe.NewMetrics()
	client := x402http.NewPaymentClient(
		evm.NewExactEvmScheme(signer),
		cfg.Policy(),
		x402http.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}),
		x402http.WithObserver(observe.Multi{observe.NewEventLogger(logger), metrics}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("x402 fetch MCP server starting",
		zap.String("version", version),
		zap.String("address", signer.Address()),
		zap.String("network", string(cfg.Network)),
		zap.Stringer("spend_ceiling", cfg.SpendCeiling),
	)

	server := mcp.NewToolServer(mcp.NewFetcher(client, mcp.WithLogger(logger)), version)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func metricsMux(metrics *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
