package operation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/congo-pay/coffee_atm/internal/ledger"
	"github.com/congo-pay/coffee_atm/internal/logging"
)

func TestSubmitRejectsWhileBusy(t *testing.T) {
	s := NewSerializer(logging.Discard())
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Submit(ctx, Operation{Kind: KindWithdraw, Amount: 300}, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	pending, ok := s.Pending()
	if !ok {
		t.Fatal("expected a pending operation")
	}
	if pending.Kind != KindWithdraw || pending.Amount != 300 || pending.ID == "" {
		t.Fatalf("unexpected pending snapshot %+v", pending)
	}

	called := false
	err := s.Submit(ctx, Operation{Kind: KindDeposit, Amount: 1000}, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}
	if called {
		t.Fatal("rejected action must not run")
	}

	// the first operation is unaffected by the rejection
	if still, ok := s.Pending(); !ok || still.ID != pending.ID {
		t.Fatalf("pending operation changed: %+v", still)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}

	if s.Busy() {
		t.Fatal("expected slot to be released")
	}
	if err := s.Submit(ctx, Operation{Kind: KindDeposit, Amount: 1000}, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected submission to be accepted after release, got %v", err)
	}
}

func TestSubmitReleasesOnFailure(t *testing.T) {
	s := NewSerializer(logging.Discard())
	ctx := context.Background()
	boom := errors.New("ledger reverted")

	err := s.Submit(ctx, Operation{Kind: KindWithdraw, Amount: 10}, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected action error to propagate unmodified, got %v", err)
	}
	if s.Busy() {
		t.Fatal("slot not released after failure")
	}
}

func TestSubmitReleasesOnPanic(t *testing.T) {
	s := NewSerializer(logging.Discard())

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = s.Submit(context.Background(), Operation{Kind: KindDeposit, Amount: 1}, func(context.Context) error {
			panic("wallet exploded")
		})
	}()

	if s.Busy() {
		t.Fatal("slot not released after panic")
	}
	if _, ok := s.Pending(); ok {
		t.Fatal("pending snapshot not cleared after panic")
	}
}

func TestSubmitValidatesBeforeAdmission(t *testing.T) {
	s := NewSerializer(logging.Discard())
	ctx := context.Background()
	noop := func(context.Context) error { return nil }

	if err := s.Submit(ctx, Operation{Kind: KindWithdraw, Amount: 0}, noop); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := s.Submit(ctx, Operation{Kind: KindDeposit, Amount: -1}, noop); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := s.Submit(ctx, Operation{Kind: "transfer", Amount: 5}, noop); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}
}

func TestSubmitTimeoutReleasesSlot(t *testing.T) {
	s := NewSerializer(logging.Discard(), WithTimeout(20*time.Millisecond))

	err := s.Submit(context.Background(), Operation{Kind: KindDeposit, Amount: 5}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected timed out, got %v", err)
	}
	if s.Busy() {
		t.Fatal("slot not released after timeout")
	}
}

func TestSubmitTimeoutKeepsCause(t *testing.T) {
	s := NewSerializer(logging.Discard(), WithTimeout(20*time.Millisecond))
	cause := errors.New("refresh failed")

	err := s.Submit(context.Background(), Operation{Kind: KindWithdraw, Amount: 5}, func(ctx context.Context) error {
		<-ctx.Done()
		return fmt.Errorf("%w: %w", cause, ctx.Err())
	})
	if !errors.Is(err, ErrTimedOut) || !errors.Is(err, cause) {
		t.Fatalf("expected timed out wrapping the action error, got %v", err)
	}
}

func TestPendingUsesClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSerializer(logging.Discard(), WithClock(func() time.Time { return fixed }))

	var seen Pending
	_ = s.Submit(context.Background(), Operation{Kind: KindDeposit, Amount: 1000, Label: "deposit"}, func(context.Context) error {
		seen, _ = s.Pending()
		return nil
	})
	if !seen.StartedAt.Equal(fixed) || seen.Label != "deposit" {
		t.Fatalf("unexpected pending snapshot %+v", seen)
	}
}
