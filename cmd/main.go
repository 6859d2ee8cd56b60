// Command rebalancer runs the 50/50 portfolio-rebalancing service.
//
// In server mode it exposes the strategy HTTP API and sweeps registered
// strategies on a fixed interval. When IEXEC_OUT is set it instead runs
// one rebalance cycle inside the confidential-compute worker and writes
// the result files.
//
// Usage:
//
//	rebalancer [--config config.yaml]
//
// Required environment variables: PRIVATE_KEY, NODE_URL,
// DEV_PORTAL_API_TOKEN.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vadiminshakov/rebalancer/config"
	"github.com/vadiminshakov/rebalancer/internal/batch"
	"github.com/vadiminshakov/rebalancer/internal/chain"
	"github.com/vadiminshakov/rebalancer/internal/clients"
	"github.com/vadiminshakov/rebalancer/internal/deal"
	"github.com/vadiminshakov/rebalancer/internal/registry"
	"github.com/vadiminshakov/rebalancer/internal/scheduler"
	"github.com/vadiminshakov/rebalancer/internal/services/portfolio"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
	"github.com/vadiminshakov/rebalancer/internal/services/rebalancer"
	"github.com/vadiminshakov/rebalancer/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := clients.NewOneInchClient(cfg.DevPortalAPIToken, cfg.ChainID)
	service := rebalancer.NewService(
		portfolio.NewReader(api, logger),
		pricer.NewPricer(api, logger),
		rebalancer.NewProvider(cfg, api, logger),
		cfg.Pair,
		cfg.Tolerance,
		logger,
	)

	if outDir := os.Getenv("IEXEC_OUT"); outDir != "" {
		runBatch(ctx, outDir, service, logger)
		return
	}

	runServer(ctx, cfg, service, logger)
}

func runBatch(ctx context.Context, outDir string, service *rebalancer.Service, logger *zap.Logger) {
	newReader := func() (batch.ProtectedDataReader, error) {
		return batch.NewFileReader()
	}

	runner := batch.NewRunner(outDir, newReader, service, logger)
	if err := runner.Run(ctx); err != nil {
		// computed.json already records the failure for the host
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Config, service *rebalancer.Service, logger *zap.Logger) {
	walletAddress, err := chain.DeriveAddress(cfg.PrivateKey)
	if err != nil {
		logger.Fatal("failed to derive server wallet address", zap.Error(err))
	}

	appAddress := cfg.IexecAppAddress
	if appAddress == "" {
		appAddress = "NOT CONFIGURED"
	}
	logger.Info("starting server mode",
		zap.Int("port", cfg.Port),
		zap.Duration("rebalancing_interval", cfg.RebalanceInterval),
		zap.String("server_wallet", walletAddress),
		zap.String("iexec_app", appAddress))

	launcher := deal.NewLocalLauncher(service, cfg.PrivateKey, logger)
	reg := registry.New(launcher, cfg.TriggerCooldown, cfg.GuardExpiry, logger)
	sweep := scheduler.New(reg, cfg.RebalanceInterval, logger)
	server := web.NewServer(fmt.Sprintf(":%d", cfg.Port), reg, cfg.IexecConfigured(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		return sweep.Run(gctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}
