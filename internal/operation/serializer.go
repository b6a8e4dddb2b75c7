package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/coffee_atm/internal/ledger"
	"github.com/congo-pay/coffee_atm/internal/logging"
	"github.com/congo-pay/coffee_atm/internal/metrics"
)

var (
	// ErrBusy rejects a mutation submitted while another one is unresolved.
	ErrBusy = errors.New("another ledger operation is in flight")

	// ErrTimedOut is returned when a bounded wait expires before the
	// operation resolves. The slot is released regardless.
	ErrTimedOut = errors.New("ledger operation timed out")

	// ErrUnknownKind rejects operations that are neither deposits nor withdrawals.
	ErrUnknownKind = errors.New("unknown operation kind")
)

// Kind is the ledger primitive an operation reduces to.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
)

// Operation is a mutation about to be submitted.
type Operation struct {
	Kind   Kind
	Amount int64
	// Label describes the user intent ("withdraw_all", "buy:Brew Special").
	Label string
}

// Pending is the snapshot of the single in-flight operation.
type Pending struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Amount    int64     `json:"amount"`
	Label     string    `json:"label,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Serializer admits at most one mutating ledger operation at a time.
type Serializer struct {
	slot    chan struct{}
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	pending *Pending
}

// Option customises a Serializer.
type Option func(*Serializer)

// WithTimeout bounds how long an admitted action may run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Serializer) { s.timeout = d }
}

// WithClock overrides the time source used for StartedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Serializer) { s.now = now }
}

// NewSerializer builds an idle serializer.
func NewSerializer(logger *slog.Logger, opts ...Option) *Serializer {
	s := &Serializer{
		slot:   make(chan struct{}, 1),
		logger: logging.Component(logger, "operation"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates op and runs action if no other operation is outstanding.
// The slot is released when action returns, fails, panics or times out.
func (s *Serializer) Submit(ctx context.Context, op Operation, action func(ctx context.Context) error) error {
	if op.Kind != KindDeposit && op.Kind != KindWithdraw {
		return fmt.Errorf("%w: %q", ErrUnknownKind, op.Kind)
	}
	if op.Amount <= 0 {
		return ledger.ErrInvalidAmount
	}

	select {
	case s.slot <- struct{}{}:
	default:
		s.logger.Warn("operation rejected, busy", slog.String("kind", string(op.Kind)), slog.Int64("amount", op.Amount))
		metrics.OperationRejected(string(op.Kind), metrics.OutcomeBusy)
		return ErrBusy
	}

	p := &Pending{
		ID:        uuid.NewString(),
		Kind:      op.Kind,
		Amount:    op.Amount,
		Label:     op.Label,
		StartedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.pending = p
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		<-s.slot
	}()

	s.logger.Info("operation admitted",
		slog.String("operation_id", p.ID),
		slog.String("kind", string(p.Kind)),
		slog.Int64("amount", p.Amount),
		slog.String("label", p.Label),
	)

	metrics.OperationStarted()
	err := s.run(ctx, action)
	took := s.now().Sub(p.StartedAt)

	attrs := []any{
		slog.String("operation_id", p.ID),
		slog.Duration("duration", took),
	}
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, ErrTimedOut) {
			outcome = metrics.OutcomeTimedOut
		}
		metrics.OperationFinished(string(p.Kind), outcome, took)
		s.logger.Warn("operation failed", append(attrs, slog.Any("error", err))...)
		return err
	}
	metrics.OperationFinished(string(p.Kind), metrics.OutcomeConfirmed, took)
	s.logger.Info("operation resolved", attrs...)
	return nil
}

func (s *Serializer) run(ctx context.Context, action func(ctx context.Context) error) error {
	if s.timeout <= 0 {
		return action(ctx)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := action(runCtx)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %s: %w", ErrTimedOut, s.timeout, err)
	}
	return err
}

// Pending returns a copy of the in-flight operation, if any.
func (s *Serializer) Pending() (Pending, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return Pending{}, false
	}
	return *s.pending, true
}

// Busy reports whether an operation is outstanding.
func (s *Serializer) Busy() bool {
	return len(s.slot) > 0
}
