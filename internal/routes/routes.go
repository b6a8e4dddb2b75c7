package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/coffee_atm/internal/balance"
	"github.com/congo-pay/coffee_atm/internal/catalog"
	"github.com/congo-pay/coffee_atm/internal/config"
	"github.com/congo-pay/coffee_atm/internal/ledger"
	"github.com/congo-pay/coffee_atm/internal/middleware"
	"github.com/congo-pay/coffee_atm/internal/notification"
	"github.com/congo-pay/coffee_atm/internal/operation"
	"github.com/congo-pay/coffee_atm/internal/purchase"
	"github.com/congo-pay/coffee_atm/internal/units"
	"github.com/congo-pay/coffee_atm/internal/wallet"
)

const startupProbeTimeout = 5 * time.Second

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	Cache    *redis.Client
	Logger   *slog.Logger
	Wallet   wallet.Provider
	Ledger   ledger.Client
	Catalog  *catalog.Catalog
	Notifier notification.Notifier
}

// Setup configures middlewares, builds the controllers and registers all
// application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Wallet == nil || d.Ledger == nil {
		return fmt.Errorf("wallet and ledger capabilities are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	manager := wallet.NewManager(d.Wallet, d.Logger)
	serializer := operation.NewSerializer(d.Logger, operation.WithTimeout(d.Cfg.OperationTimeout))
	balances := balance.NewController(manager, d.Ledger, serializer, d.Notifier, d.Logger)
	purchases := purchase.NewService(d.Catalog, balances, purchase.NewLedger(), d.Notifier, d.Logger)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger, func() string { return manager.Session().Account }))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d, manager)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	walletHandler := wallet.NewHandler(manager, func(c *fiber.Ctx, s wallet.Session) {
		if _, err := balances.Refresh(c.UserContext()); err != nil {
			d.Logger.Warn("initial balance read failed", slog.String("account", s.Account), slog.Any("error", err))
		}
	})
	RegisterSessionRoutes(api, walletHandler, middleware.ConnectRateLimit(d.Cache, d.Cfg.ConnectRateLimit))
	RegisterBalanceRoutes(api, balance.NewHandler(balances, balance.Presets{
		Deposit:  d.Cfg.DepositAmount,
		Withdraw: d.Cfg.WithdrawAmount,
	}, units.Formatter{Decimals: d.Cfg.TokenDecimals, Symbol: d.Cfg.TokenSymbol}))
	RegisterOperationRoutes(api, operation.NewHandler(serializer))
	RegisterCatalogRoutes(api, catalog.NewHandler(d.Catalog, balances.Amount))
	RegisterPurchaseRoutes(api, purchase.NewHandler(purchases))

	resume(manager, balances, d.Logger)
	return nil
}

// resume re-binds a wallet account authorized in an earlier run and loads
// its balance. Failures only leave the session disconnected.
func resume(manager *wallet.Manager, balances *balance.Controller, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), startupProbeTimeout)
	defer cancel()

	session, err := manager.Resume(ctx)
	if err != nil {
		log.Warn("wallet resume failed", slog.Any("error", err))
		return
	}
	if !session.Connected() {
		return
	}
	if _, err := balances.Refresh(ctx); err != nil {
		log.Warn("initial balance read failed", slog.String("account", session.Account), slog.Any("error", err))
	}
}
