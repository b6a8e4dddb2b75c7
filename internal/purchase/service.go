package purchase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/congo-pay/coffee_atm/internal/balance"
	"github.com/congo-pay/coffee_atm/internal/catalog"
	"github.com/congo-pay/coffee_atm/internal/ledger"
	"github.com/congo-pay/coffee_atm/internal/logging"
	"github.com/congo-pay/coffee_atm/internal/metrics"
	"github.com/congo-pay/coffee_atm/internal/notification"
)

// ErrInsufficientBalance means the published balance does not cover the price.
// No ledger call is made in that case.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Service buys catalog items by withdrawing their price from the ledger.
type Service struct {
	catalog  *catalog.Catalog
	balances *balance.Controller
	log      *Ledger
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a purchase service.
func NewService(c *catalog.Catalog, balances *balance.Controller, log *Ledger, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		catalog:  c,
		balances: balances,
		log:      log,
		notifier: notifier,
		logger:   logging.Component(logger, "purchase"),
	}
}

// Outcome describes a purchase attempt that reached the ledger.
type Outcome struct {
	Record *Record        `json:"record,omitempty"`
	Result balance.Result `json:"result"`
}

// Buy checks the price against the published balance, withdraws it and
// appends a record once the withdrawal is confirmed. A record exists iff the
// ledger confirmed the withdrawal, even when the refresh afterwards fails.
func (s *Service) Buy(ctx context.Context, item string) (Outcome, error) {
	price, err := s.catalog.PriceOf(item)
	if err != nil {
		return Outcome{}, err
	}

	switch s.catalog.CanAfford(s.balances.Amount(), item) {
	case catalog.Unknown:
		return Outcome{}, balance.ErrBalanceNotYetLoaded
	case catalog.NotAffordable:
		return Outcome{}, ErrInsufficientBalance
	}

	var out Outcome
	res, err := s.balances.WithdrawLabeled(ctx, price, "buy:"+item, func(receipt ledger.Receipt) {
		rec := s.log.Record(item, price, receipt.TxHash)
		out.Record = &rec
		metrics.PurchaseRecorded(item, price)
		s.logger.Info("purchase recorded", slog.String("item", item), slog.Int64("price", price), slog.String("tx_hash", receipt.TxHash))
	})
	out.Result = res

	if out.Record != nil {
		s.notify(ctx, res.Account, *out.Record)
	}
	return out, err
}

// History returns the purchase log.
func (s *Service) History() []Record {
	return s.log.Records()
}

func (s *Service) notify(ctx context.Context, account string, rec Record) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:    notification.KindPurchaseRecorded,
		Account: account,
		Amount:  rec.Price,
		Item:    rec.Item,
		TxHash:  rec.TxHash,
		At:      time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("notification failed", slog.String("kind", notification.KindPurchaseRecorded), slog.Any("error", err))
	}
}
