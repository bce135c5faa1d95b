package commands

// Constructors shared by the subcommands

import (
	"context"
	"time"

	"arb-stalker/internal/clients_api/etherscan"
	"arb-stalker/internal/clients_api/rpc"
	"arb-stalker/internal/features/stalker"
	"arb-stalker/internal/infra/config"
	"arb-stalker/internal/infra/log"
	"arb-stalker/internal/infra/store"

	"go.uber.org/zap"
)

func newStore(ctx context.Context, cfg *config.Config) (*store.RedisStore, error) {
	s, err := store.NewRedisStore(ctx, cfg.Redis.URL)
	if err != nil {
		log.LogError("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}
	log.LogSuccess("Connected to Redis")
	return s, nil
}

// newExplorer returns the Etherscan client, or an RPC backed explorer when
// rpc.url is set. The returned func releases the RPC connection.
func newExplorer(ctx context.Context, cfg *config.Config) (stalker.Explorer, func(), error) {
	client := etherscan.NewClient(etherscan.Options{
		APIKey:            cfg.Etherscan.APIKey,
		BaseURL:           cfg.Etherscan.BaseURL,
		ChainID:           cfg.Etherscan.ChainID,
		Timeout:           time.Duration(cfg.Etherscan.RequestTimeout) * time.Second,
		MaxRetries:        cfg.Etherscan.MaxRetries,
		RequestsPerSecond: cfg.Etherscan.RequestsPerSecond,
	})

	if cfg.RPC.URL == "" {
		return client, func() {}, nil
	}

	explorer, err := rpc.Dial(ctx, cfg.RPC.URL, client)
	if err != nil {
		log.LogError("Failed to connect to RPC node", zap.Error(err))
		return nil, nil, err
	}
	return explorer, explorer.Close, nil
}
