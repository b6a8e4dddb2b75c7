package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/congo-pay/coffee_atm/internal/ledger"
	"github.com/congo-pay/coffee_atm/internal/logging"
	"github.com/congo-pay/coffee_atm/internal/notification"
	"github.com/congo-pay/coffee_atm/internal/operation"
)

var (
	// ErrBalanceNotYetLoaded means no ledger read has completed yet.
	ErrBalanceNotYetLoaded = errors.New("balance not yet loaded")

	// ErrRefreshFailed means a mutation was confirmed but the following
	// balance read failed. The previously published balance is kept.
	ErrRefreshFailed = errors.New("balance refresh failed after confirmation")
)

// AccountSource yields the bound wallet account.
type AccountSource interface {
	Account() (string, error)
}

// Balance is a published ledger read.
type Balance struct {
	Account string    `json:"account"`
	Amount  int64     `json:"amount"`
	AsOf    time.Time `json:"as_of"`
}

// Result describes a confirmed mutation and the balance published after it.
type Result struct {
	Account string         `json:"account"`
	Kind    operation.Kind `json:"kind"`
	Amount  int64          `json:"amount"`
	Receipt ledger.Receipt `json:"receipt"`
	Balance Balance        `json:"balance"`
}

// Confirmed reports whether the ledger confirmed the mutation.
func (r Result) Confirmed() bool {
	return r.Receipt.TxHash != ""
}

// ConfirmedFunc runs right after confirmation, while the operation still
// holds the serializer slot.
type ConfirmedFunc func(receipt ledger.Receipt)

// Controller publishes the ledger balance and orchestrates mutate-then-refresh.
type Controller struct {
	accounts AccountSource
	ledger   ledger.Client
	ops      *operation.Serializer
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	published *Balance
	// reads numbers ledger reads as they start; publishedAt is the number of
	// the read behind published. An older read never replaces a newer one.
	reads       uint64
	publishedAt uint64
}

// NewController builds a controller with no published balance.
func NewController(accounts AccountSource, client ledger.Client, ops *operation.Serializer, notifier notification.Notifier, logger *slog.Logger) *Controller {
	return &Controller{
		accounts: accounts,
		ledger:   client,
		ops:      ops,
		notifier: notifier,
		logger:   logging.Component(logger, "balance"),
		now:      time.Now,
	}
}

// Current returns the last published balance.
func (c *Controller) Current() (Balance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.published == nil {
		return Balance{}, false
	}
	return *c.published, true
}

// Amount returns the published amount, or nil when nothing was read yet.
func (c *Controller) Amount() *int64 {
	b, ok := c.Current()
	if !ok {
		return nil
	}
	return &b.Amount
}

// Refresh reads the ledger balance and publishes it. When a read that
// started later has already published, that newer value is kept and returned.
func (c *Controller) Refresh(ctx context.Context) (Balance, error) {
	account, err := c.accounts.Account()
	if err != nil {
		return Balance{}, err
	}
	seq := c.beginRead()
	amount, err := c.ledger.Balance(ctx, account)
	if err != nil {
		return Balance{}, fmt.Errorf("read balance: %w", err)
	}
	return c.publish(seq, account, amount), nil
}

func (c *Controller) beginRead() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.reads
}

func (c *Controller) publish(seq uint64, account string, amount int64) Balance {
	c.mu.Lock()
	if c.published != nil && seq < c.publishedAt {
		newer := *c.published
		c.mu.Unlock()
		c.logger.Debug("stale balance read dropped", slog.String("account", account), slog.Int64("amount", amount), slog.Int64("published", newer.Amount))
		return newer
	}
	b := Balance{Account: account, Amount: amount, AsOf: c.now().UTC()}
	c.published = &b
	c.publishedAt = seq
	c.mu.Unlock()
	c.logger.Info("balance published", slog.String("account", account), slog.Int64("amount", amount))
	return b
}

// MutateAndRefresh submits a deposit or withdraw through the serializer,
// waits for confirmation, then re-reads and publishes the balance. Before
// confirmation any failure leaves the published balance untouched.
func (c *Controller) MutateAndRefresh(ctx context.Context, kind operation.Kind, amount int64, onConfirmed ...ConfirmedFunc) (Result, error) {
	return c.mutate(ctx, operation.Operation{Kind: kind, Amount: amount, Label: string(kind)}, onConfirmed...)
}

func (c *Controller) mutate(ctx context.Context, op operation.Operation, onConfirmed ...ConfirmedFunc) (Result, error) {
	account, err := c.accounts.Account()
	if err != nil {
		return Result{}, err
	}

	res := Result{Account: account, Kind: op.Kind, Amount: op.Amount}
	err = c.ops.Submit(ctx, op, func(ctx context.Context) error {
		var (
			tx  ledger.Tx
			err error
		)
		switch op.Kind {
		case operation.KindDeposit:
			tx, err = c.ledger.Deposit(ctx, account, op.Amount)
		case operation.KindWithdraw:
			tx, err = c.ledger.Withdraw(ctx, account, op.Amount)
		}
		if err != nil {
			return fmt.Errorf("submit %s: %w", op.Kind, err)
		}

		receipt, err := tx.Wait(ctx)
		if err != nil {
			return fmt.Errorf("confirm %s %s: %w", op.Kind, tx.Hash(), err)
		}
		res.Receipt = receipt
		for _, fn := range onConfirmed {
			fn(receipt)
		}

		seq := c.beginRead()
		amount, err := c.ledger.Balance(ctx, account)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		}
		res.Balance = c.publish(seq, account, amount)
		return nil
	})

	if res.Confirmed() {
		c.notify(ctx, op, account, res.Receipt)
	}
	return res, err
}

func (c *Controller) notify(ctx context.Context, op operation.Operation, account string, receipt ledger.Receipt) {
	if c.notifier == nil {
		return
	}
	kind := notification.KindDepositConfirmed
	if op.Kind == operation.KindWithdraw {
		kind = notification.KindWithdrawConfirmed
	}
	msg := notification.Message{
		Kind:    kind,
		Account: account,
		Amount:  op.Amount,
		Label:   op.Label,
		TxHash:  receipt.TxHash,
		At:      c.now().UTC(),
	}
	if err := c.notifier.Send(ctx, msg); err != nil {
		c.logger.Warn("notification failed", slog.String("kind", kind), slog.Any("error", err))
	}
}

// Deposit credits amount and refreshes.
func (c *Controller) Deposit(ctx context.Context, amount int64) (Result, error) {
	return c.MutateAndRefresh(ctx, operation.KindDeposit, amount)
}

// Withdraw debits amount and refreshes.
func (c *Controller) Withdraw(ctx context.Context, amount int64) (Result, error) {
	return c.MutateAndRefresh(ctx, operation.KindWithdraw, amount)
}

// WithdrawLabeled debits amount under a descriptive label, running
// onConfirmed hooks under the serializer slot.
func (c *Controller) WithdrawLabeled(ctx context.Context, amount int64, label string, onConfirmed ...ConfirmedFunc) (Result, error) {
	return c.mutate(ctx, operation.Operation{Kind: operation.KindWithdraw, Amount: amount, Label: label}, onConfirmed...)
}

// WithdrawAll withdraws exactly the published balance. With a zero balance it
// only refreshes.
func (c *Controller) WithdrawAll(ctx context.Context) (Result, error) {
	current, ok := c.Current()
	if !ok {
		return Result{}, ErrBalanceNotYetLoaded
	}
	if current.Amount == 0 {
		b, err := c.Refresh(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Account: b.Account, Kind: operation.KindWithdraw, Balance: b}, nil
	}
	return c.WithdrawLabeled(ctx, current.Amount, "withdraw_all")
}
