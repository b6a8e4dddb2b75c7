package purchase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/congo-pay/coffee_atm/internal/balance"
	"github.com/congo-pay/coffee_atm/internal/catalog"
	"github.com/congo-pay/coffee_atm/internal/ledger"
	"github.com/congo-pay/coffee_atm/internal/logging"
	"github.com/congo-pay/coffee_atm/internal/notification"
	"github.com/congo-pay/coffee_atm/internal/operation"
)

const account = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

type fixedAccount string

func (a fixedAccount) Account() (string, error) { return string(a), nil }

type testNotifier struct {
	messages []notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.messages = append(n.messages, msg)
	return nil
}

// brokenRefresh confirms mutations but fails every balance read after the first.
type brokenRefresh struct {
	*ledger.Sandbox
	reads int
}

func (l *brokenRefresh) Balance(ctx context.Context, account string) (int64, error) {
	l.reads++
	if l.reads > 1 {
		return 0, errors.New("node unreachable")
	}
	return l.Sandbox.Balance(ctx, account)
}

// stalledRefresh answers the first balance read and blocks every later one
// until its context ends.
type stalledRefresh struct {
	*ledger.Sandbox
	reads int
}

func (l *stalledRefresh) Balance(ctx context.Context, account string) (int64, error) {
	l.reads++
	if l.reads > 1 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return l.Sandbox.Balance(ctx, account)
}

func newTimedService(t *testing.T, client ledger.Client, timeout time.Duration) (*Service, *Ledger) {
	t.Helper()
	ops := operation.NewSerializer(logging.Discard(), operation.WithTimeout(timeout))
	balances := balance.NewController(fixedAccount(account), client, ops, nil, logging.Discard())
	log := NewLedger()
	if _, err := balances.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return NewService(catalog.Default(), balances, log, nil, logging.Discard()), log
}

type fixture struct {
	sandbox  *ledger.Sandbox
	balances *balance.Controller
	log      *Ledger
	notifier *testNotifier
	svc      *Service
}

func newFixture(t *testing.T, client ledger.Client, sandbox *ledger.Sandbox, seed int64) fixture {
	t.Helper()
	ledger.SeedBalance(sandbox, account, seed)
	notifier := &testNotifier{}
	balances := balance.NewController(fixedAccount(account), client, operation.NewSerializer(logging.Discard()), nil, logging.Discard())
	log := NewLedger()
	return fixture{
		sandbox:  sandbox,
		balances: balances,
		log:      log,
		notifier: notifier,
		svc:      NewService(catalog.Default(), balances, log, notifier, logging.Discard()),
	}
}

func TestBuyRecordsConfirmedPurchase(t *testing.T) {
	led := ledger.NewSandbox()
	f := newFixture(t, led, led, 200)
	ctx := context.Background()
	f.log.Record("Hot Americano", 250, "0xearlier")

	if _, err := f.balances.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	out, err := f.svc.Buy(ctx, "Brew Special")
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if out.Result.Balance.Amount != 50 {
		t.Fatalf("expected balance 50, got %d", out.Result.Balance.Amount)
	}
	if f.sandbox.Calls("withdraw") != 1 {
		t.Fatalf("expected one withdraw, got %d", f.sandbox.Calls("withdraw"))
	}

	records := f.log.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	last := records[len(records)-1]
	if last.Item != "Brew Special" || last.Price != 150 {
		t.Fatalf("unexpected last record %+v", last)
	}
	if last.TxHash == "" || last.TxHash != out.Result.Receipt.TxHash {
		t.Fatalf("record must carry the confirmed tx hash, got %q", last.TxHash)
	}

	if len(f.notifier.messages) != 1 || f.notifier.messages[0].Kind != notification.KindPurchaseRecorded {
		t.Fatalf("expected purchase notification, got %+v", f.notifier.messages)
	}
	if f.notifier.messages[0].Account != account {
		t.Fatalf("expected notification for %s, got %s", account, f.notifier.messages[0].Account)
	}
}

func TestBuyInsufficientBalanceSkipsLedger(t *testing.T) {
	led := ledger.NewSandbox()
	f := newFixture(t, led, led, 50)
	ctx := context.Background()

	if _, err := f.balances.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	_, err := f.svc.Buy(ctx, "Matcha Queen Cappuccino")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if f.sandbox.Calls("withdraw") != 0 {
		t.Fatal("no ledger call expected")
	}
	if f.log.Len() != 0 {
		t.Fatal("purchase log must be unchanged")
	}
}

func TestBuyRequiresLoadedBalance(t *testing.T) {
	led := ledger.NewSandbox()
	f := newFixture(t, led, led, 1_000)

	if _, err := f.svc.Buy(context.Background(), "Brew Special"); !errors.Is(err, balance.ErrBalanceNotYetLoaded) {
		t.Fatalf("expected balance not yet loaded, got %v", err)
	}
	if f.sandbox.Calls("withdraw") != 0 {
		t.Fatal("no ledger call expected")
	}
}

func TestBuyUnknownItem(t *testing.T) {
	led := ledger.NewSandbox()
	f := newFixture(t, led, led, 1_000)

	if _, err := f.svc.Buy(context.Background(), "Espresso Tonic"); !errors.Is(err, catalog.ErrUnknownItem) {
		t.Fatalf("expected unknown item, got %v", err)
	}
}

func TestBuyRevertRecordsNothing(t *testing.T) {
	led := ledger.NewSandbox()
	f := newFixture(t, led, led, 300)
	ctx := context.Background()

	if _, err := f.balances.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	// drained elsewhere after the balance was published
	ledger.SeedBalance(led, account, 100)

	out, err := f.svc.Buy(ctx, "Coffee Fudge")
	if !errors.Is(err, ledger.ErrLedgerReverted) {
		t.Fatalf("expected revert, got %v", err)
	}
	if out.Record != nil || f.log.Len() != 0 {
		t.Fatal("reverted purchase must not be recorded")
	}
	if len(f.notifier.messages) != 0 {
		t.Fatal("no notification expected")
	}
}

func TestBuyRecordsEvenWhenRefreshFails(t *testing.T) {
	sandbox := ledger.NewSandbox()
	f := newFixture(t, &brokenRefresh{Sandbox: sandbox}, sandbox, 400)
	ctx := context.Background()

	if _, err := f.balances.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	out, err := f.svc.Buy(ctx, "Hot Americano")
	if !errors.Is(err, balance.ErrRefreshFailed) {
		t.Fatalf("expected refresh failure, got %v", err)
	}
	if out.Record == nil || f.log.Len() != 1 {
		t.Fatal("confirmed purchase must be recorded")
	}
	if got, _ := sandbox.Balance(ctx, account); got != 150 {
		t.Fatalf("expected ledger balance 150, got %d", got)
	}
}

func TestBuyTimedOutRefreshKeepsRecord(t *testing.T) {
	sandbox := ledger.NewSandbox()
	ledger.SeedBalance(sandbox, account, 500)
	svc, log := newTimedService(t, &stalledRefresh{Sandbox: sandbox}, 50*time.Millisecond)

	out, err := svc.Buy(context.Background(), "Brew Special")
	if !errors.Is(err, operation.ErrTimedOut) || !errors.Is(err, balance.ErrRefreshFailed) {
		t.Fatalf("expected timed out refresh failure, got %v", err)
	}
	if out.Record == nil || log.Len() != 1 {
		t.Fatal("confirmed purchase must be recorded")
	}
	if got, _ := sandbox.Balance(context.Background(), account); got != 350 {
		t.Fatalf("expected ledger balance 350, got %d", got)
	}
}
