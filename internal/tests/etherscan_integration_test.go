//go:build integration

package tests

import (
	"context"
	"os"
	"testing"
	"time"

	"arb-stalker/internal/clients_api/etherscan"
)

// Arbitrum One bridge, has a steady stream of transactions.
const busyAddress = "0x4Dbd4fc535Ac27206064B68FfCf827b0A60BAB3f"

func newIntegrationClient(t *testing.T) *etherscan.Client {
	t.Helper()
	apiKey := os.Getenv("ETHERSCAN_API_KEY")
	if apiKey == "" {
		t.Skip("ETHERSCAN_API_KEY not set")
	}
	return etherscan.NewClient(etherscan.Options{APIKey: apiKey, Timeout: 20 * time.Second, MaxRetries: 2})
}

func TestIntegration_Etherscan_BlockNumber(t *testing.T) {
	c := newIntegrationClient(t)

	height, err := c.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber failed: %v", err)
	}
	if height == 0 {
		t.Fatalf("expected height > 0")
	}
}

func TestIntegration_Etherscan_HistoryBounds(t *testing.T) {
	c := newIntegrationClient(t)
	ctx := context.Background()

	height, err := c.BlockNumber(ctx)
	if err != nil {
		t.Fatalf("BlockNumber failed: %v", err)
	}

	from := height - 500_000
	txs, err := c.History(ctx, busyAddress, from, height)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	for _, tx := range txs {
		if tx.BlockNumber <= from || tx.BlockNumber > height {
			t.Fatalf("tx %s at block %d outside (%d, %d]", tx.Hash, tx.BlockNumber, from, height)
		}
	}
}
