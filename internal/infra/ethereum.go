package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// NewRPCClient dials a JSON-RPC endpoint (http, ws or ipc) and checks that it
// answers eth_chainId.
func NewRPCClient(ctx context.Context, url string) (*rpc.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", url, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var chainID string
	if err := client.CallContext(pingCtx, &chainID, "eth_chainId"); err != nil {
		client.Close()
		return nil, fmt.Errorf("probe rpc %s: %w", url, err)
	}
	return client, nil
}
