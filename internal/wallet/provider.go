package wallet

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrCapabilityUnavailable means no wallet capability is present.
	ErrCapabilityUnavailable = errors.New("wallet capability unavailable")

	// ErrConnectionRejected means the user declined account access.
	ErrConnectionRejected = errors.New("wallet connection rejected")
)

// Provider is the wallet capability.
type Provider interface {
	// Available reports whether the wallet can be reached at all.
	Available(ctx context.Context) bool
	// RequestAccounts asks the user to grant account access.
	RequestAccounts(ctx context.Context) ([]string, error)
	// Accounts lists accounts already authorized, without prompting.
	Accounts(ctx context.Context) ([]string, error)
}

// StaticProvider is an in-process wallet with a fixed set of accounts. It
// backs the sandbox mode and tests.
type StaticProvider struct {
	mu         sync.Mutex
	accounts   []string
	authorized bool
	available  bool
	reject     bool
	requests   int
}

// NewStaticProvider creates an available wallet holding accounts. Accounts
// are not authorized until the first RequestAccounts call.
func NewStaticProvider(accounts ...string) *StaticProvider {
	return &StaticProvider{accounts: accounts, available: true}
}

// SetAvailable toggles wallet presence.
func (p *StaticProvider) SetAvailable(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = v
}

// SetReject makes RequestAccounts behave as if the user declined.
func (p *StaticProvider) SetReject(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reject = v
}

// Authorize marks the accounts as already granted, as a wallet remembers a
// previously approved site.
func (p *StaticProvider) Authorize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authorized = true
}

// Requests returns how many account prompts were issued.
func (p *StaticProvider) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

func (p *StaticProvider) Available(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *StaticProvider) RequestAccounts(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.available {
		return nil, ErrCapabilityUnavailable
	}
	p.requests++
	if p.reject {
		return nil, ErrConnectionRejected
	}
	p.authorized = true
	return append([]string(nil), p.accounts...), nil
}

func (p *StaticProvider) Accounts(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.available {
		return nil, ErrCapabilityUnavailable
	}
	if !p.authorized {
		return nil, nil
	}
	return append([]string(nil), p.accounts...), nil
}
