package rpc

// Explorer serves transaction history from Etherscan and the chain height from
// a JSON-RPC node. Used when rpc.url is configured so the height does not
// spend Etherscan quota.

import (
	"context"
	"fmt"
	"time"

	"arb-stalker/internal/clients_api/etherscan"
	"arb-stalker/internal/infra/log"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

type Explorer struct {
	*etherscan.Client
	eth *ethclient.Client
}

// Dial connects to the node and checks it serves the chain the Etherscan client queries.
func Dial(ctx context.Context, rpcURL string, history *etherscan.Client) (*Explorer, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	eth, err := ethclient.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}

	chainID, err := eth.ChainID(dialCtx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to get chain id from rpc: %w", err)
	}
	if !chainID.IsInt64() || chainID.Int64() != history.ChainID() {
		eth.Close()
		return nil, fmt.Errorf("rpc chain id %s does not match etherscan chain id %d", chainID, history.ChainID())
	}

	log.LogInfo("Using RPC node for block height", zap.String("chainID", chainID.String()))
	return &Explorer{Client: history, eth: eth}, nil
}

// BlockNumber shadows the Etherscan proxy call.
func (e *Explorer) BlockNumber(ctx context.Context) (uint64, error) {
	height, err := e.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("rpc eth_blockNumber: %w", err)
	}
	return height, nil
}

func (e *Explorer) Close() {
	e.eth.Close()
}
