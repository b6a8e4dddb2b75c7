package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	// EIP-1193 "User Rejected Request".
	codeUserRejected = 4001
	// JSON-RPC "Method not found".
	codeMethodNotFound = -32601

	probeTimeout = 3 * time.Second
)

// RPCProvider reaches a wallet through its Ethereum JSON-RPC endpoint.
type RPCProvider struct {
	client *rpc.Client

	mu      sync.Mutex
	chainID uint64
}

// NewRPCProvider wraps an RPC connection to the wallet. A nil client yields a
// provider that is never available.
func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

// Available probes eth_chainId.
func (p *RPCProvider) Available(ctx context.Context) bool {
	if p == nil || p.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var id hexutil.Uint64
	if err := p.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return false
	}
	p.mu.Lock()
	p.chainID = uint64(id)
	p.mu.Unlock()
	return true
}

// ChainID returns the chain identifier observed by the last successful probe.
func (p *RPCProvider) ChainID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID
}

// RequestAccounts calls eth_requestAccounts, falling back to eth_accounts for
// endpoints (plain nodes, signers) that do not serve the prompt method.
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	if p == nil || p.client == nil {
		return nil, ErrCapabilityUnavailable
	}
	accounts, err := p.call(ctx, "eth_requestAccounts")
	if err != nil && rpcCode(err) == codeMethodNotFound {
		accounts, err = p.call(ctx, "eth_accounts")
	}
	if err != nil {
		if rpcCode(err) == codeUserRejected {
			return nil, fmt.Errorf("%w: %v", ErrConnectionRejected, err)
		}
		return nil, err
	}
	return accounts, nil
}

// Accounts calls eth_accounts.
func (p *RPCProvider) Accounts(ctx context.Context) ([]string, error) {
	if p == nil || p.client == nil {
		return nil, ErrCapabilityUnavailable
	}
	return p.call(ctx, "eth_accounts")
}

func (p *RPCProvider) call(ctx context.Context, method string) ([]string, error) {
	var addrs []common.Address
	if err := p.client.CallContext(ctx, &addrs, method); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Hex())
	}
	return out, nil
}

func rpcCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}
