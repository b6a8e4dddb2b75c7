package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is a concurrency-safe in-memory ledger. Mutations are applied when
// their Tx is waited on, which mirrors on-chain confirmation: a withdraw that
// no longer fits the balance at that point reverts.
type Sandbox struct {
	mu       sync.RWMutex
	balances map[string]int64
	block    uint64
	calls    map[string]int
}

// NewSandbox creates an empty sandbox ledger.
func NewSandbox() *Sandbox {
	return &Sandbox{
		balances: make(map[string]int64),
		calls:    make(map[string]int),
	}
}

// Balance returns the balance held for account.
func (l *Sandbox) Balance(_ context.Context, account string) (int64, error) {
	if account == "" {
		return 0, ErrNotConnected
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["balance"]++
	return l.balances[key(account)], nil
}

// Deposit credits amount to account once confirmed.
func (l *Sandbox) Deposit(_ context.Context, account string, amount int64) (Tx, error) {
	if err := validate(account, amount); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.calls["deposit"]++
	l.mu.Unlock()
	return &sandboxTx{ledger: l, hash: newHash(), account: key(account), delta: amount}, nil
}

// Withdraw debits amount from account once confirmed.
func (l *Sandbox) Withdraw(_ context.Context, account string, amount int64) (Tx, error) {
	if err := validate(account, amount); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.calls["withdraw"]++
	l.mu.Unlock()
	return &sandboxTx{ledger: l, hash: newHash(), account: key(account), delta: -amount}, nil
}

// Calls reports how many times the named operation ("balance", "deposit",
// "withdraw") was invoked.
func (l *Sandbox) Calls(op string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.calls[op]
}

func (l *Sandbox) apply(account string, delta int64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.balances[account]
	if current+delta < 0 {
		return 0, &RevertError{
			Reason:       fmt.Sprintf("InsufficientBalance(balance=%d, withdrawAmount=%d)", current, -delta),
			Insufficient: true,
		}
	}
	l.balances[account] = current + delta
	l.block++
	return l.block, nil
}

type sandboxTx struct {
	ledger  *Sandbox
	hash    string
	account string
	delta   int64

	once    sync.Once
	receipt Receipt
	err     error
}

func (t *sandboxTx) Hash() string { return t.hash }

func (t *sandboxTx) Wait(ctx context.Context) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	t.once.Do(func() {
		block, err := t.ledger.apply(t.account, t.delta)
		if err != nil {
			t.err = err
			return
		}
		t.receipt = Receipt{TxHash: t.hash, Block: block}
	})
	return t.receipt, t.err
}

// Accounts are compared case-insensitively, like hex addresses.
func key(account string) string {
	return strings.ToLower(account)
}

func newHash() string {
	id := uuid.New()
	return "0x" + strings.ReplaceAll(id.String(), "-", "")
}
