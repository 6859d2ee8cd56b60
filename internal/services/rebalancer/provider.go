package rebalancer

import (
	"github.com/pkg/errors"
	"github.com/vadiminshakov/rebalancer/config"
	"github.com/vadiminshakov/rebalancer/internal/chain"
	"github.com/vadiminshakov/rebalancer/internal/clients"
	"github.com/vadiminshakov/rebalancer/internal/services/allowance"
	"github.com/vadiminshakov/rebalancer/internal/services/swap"
	"go.uber.org/zap"
)

// Provider wires the production execution path: a chain signer for the
// key, the aggregator approval API and the settlement-venue client.
type Provider struct {
	cfg    *config.Config
	api    *clients.OneInchClient
	logger *zap.Logger
}

// NewProvider creates the production execution provider.
func NewProvider(cfg *config.Config, api *clients.OneInchClient, logger *zap.Logger) *Provider {
	return &Provider{cfg: cfg, api: api, logger: logger}
}

// ForKey builds execution dependencies bound to the wallet of the key.
func (p *Provider) ForKey(privateKeyHex string) (string, AllowanceManager, SwapExecutor, error) {
	signer, err := chain.NewSigner(privateKeyHex, p.cfg.NodeURL, p.cfg.ChainID, p.logger)
	if err != nil {
		return "", nil, nil, errors.Wrap(err, "failed to create signer")
	}

	venueClient := clients.NewFusionClient(p.cfg.DevPortalAPIToken, p.cfg.ChainID, signer)

	am := allowance.NewManager(p.api, signer, p.cfg.ApprovalWait, p.logger)
	se := swap.NewExecutor(venueClient, p.cfg.SwapPollInterval, p.cfg.SwapMaxWait, p.logger)

	return signer.Address(), am, se, nil
}
