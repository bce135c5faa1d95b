package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"arb-stalker/internal/model"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// txListEntry - one item of account/txlist
type txListEntry struct {
	Hash        string `json:"hash"`
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	IsError     string `json:"isError"`
}

// BlockNumber returns the latest block height via the eth_blockNumber proxy.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_blockNumber")

	raw, err := c.MakeRequest(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}

	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, fmt.Errorf("failed to unmarshal block number: %w", err)
	}
	height, err := hexutil.DecodeUint64(hex)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q: %w", hex, err)
	}
	return height, nil
}

// History returns the normal transactions of address in blocks (fromBlock, toBlock],
// oldest first. Etherscan treats startblock as inclusive, so the request starts at
// fromBlock+1 and a watermark block is never reported twice.
func (c *Client) History(ctx context.Context, address string, fromBlock, toBlock uint64) ([]model.Transaction, error) {
	if fromBlock >= toBlock {
		return nil, nil
	}

	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", strconv.FormatUint(fromBlock+1, 10))
	params.Set("endblock", strconv.FormatUint(toBlock, 10))
	params.Set("sort", "asc")

	raw, err := c.MakeRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", address, err)
	}

	var entries []txListEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history for %s: %w", address, err)
	}

	txs := make([]model.Transaction, 0, len(entries))
	for _, e := range entries {
		blockNumber, err := strconv.ParseUint(e.BlockNumber, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid block number %q in tx %s: %w", e.BlockNumber, e.Hash, err)
		}
		timestamp, _ := strconv.ParseInt(e.TimeStamp, 10, 64)
		txs = append(txs, model.Transaction{
			Hash:        e.Hash,
			BlockNumber: blockNumber,
			From:        e.From,
			To:          e.To,
			Value:       e.Value,
			Timestamp:   timestamp,
			Failed:      e.IsError == "1",
		})
	}
	return txs, nil
}
