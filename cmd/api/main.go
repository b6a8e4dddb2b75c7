package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/congo-pay/coffee_atm/internal/catalog"
	"github.com/congo-pay/coffee_atm/internal/config"
	"github.com/congo-pay/coffee_atm/internal/infra"
	"github.com/congo-pay/coffee_atm/internal/ledger"
	"github.com/congo-pay/coffee_atm/internal/logging"
	"github.com/congo-pay/coffee_atm/internal/notification"
	"github.com/congo-pay/coffee_atm/internal/routes"
	"github.com/congo-pay/coffee_atm/internal/server"
	"github.com/congo-pay/coffee_atm/internal/wallet"
)

// Hardhat's first development account, used when SANDBOX_ACCOUNT is unset.
const defaultSandboxAccount = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func main() {
	// .env is a local development convenience; real environments set variables directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	menu, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("load catalog", "error", err)
		os.Exit(1)
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	notifiers := notification.Fanout{notification.NewLoggerNotifier(logger)}
	broker, err := infra.NewAMQP(cfg.AMQPURL)
	if err != nil {
		logger.Error("connect amqp", "error", err)
		os.Exit(1)
	}
	if broker != nil {
		defer func() {
			if err := broker.Close(); err != nil {
				logger.Warn("close amqp", "error", err)
			}
		}()
		notifiers = append(notifiers, notification.NewAMQPNotifier(broker.Channel, cfg.EventExchange, logger))
	}
	if len(cfg.KafkaBrokers) > 0 {
		writer := notification.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Warn("close kafka writer", "error", err)
			}
		}()
		notifiers = append(notifiers, notification.NewKafkaNotifier(writer, logger))
	}

	provider, client, closeCapabilities, err := capabilities(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect wallet", "error", err)
		os.Exit(1)
	}
	defer closeCapabilities()

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		Cache:    cache,
		Logger:   logger,
		Wallet:   provider,
		Ledger:   client,
		Catalog:  menu,
		Notifier: notifiers,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

// capabilities builds the wallet and ledger backends selected by
// LEDGER_BACKEND. The returned func closes any RPC connections.
func capabilities(ctx context.Context, cfg config.Config, logger *slog.Logger) (wallet.Provider, ledger.Client, func(), error) {
	if cfg.Sandbox() {
		account := cfg.SandboxAccount
		if account == "" {
			account = defaultSandboxAccount
		}
		led := ledger.NewSandbox()
		ledger.SeedBalance(led, account, cfg.SandboxInitialBalance)
		logger.Info("using sandbox ledger", "account", account, "initial_balance", cfg.SandboxInitialBalance)
		return wallet.NewStaticProvider(account), led, func() {}, nil
	}

	walletRPC, err := infra.NewRPCClient(ctx, cfg.WalletRPCURL)
	if err != nil {
		return nil, nil, nil, err
	}
	ledgerRPC := walletRPC
	if cfg.LedgerRPCURL != cfg.WalletRPCURL {
		if ledgerRPC, err = infra.NewRPCClient(ctx, cfg.LedgerRPCURL); err != nil {
			walletRPC.Close()
			return nil, nil, nil, err
		}
	}
	closeAll := func() {
		walletRPC.Close()
		if ledgerRPC != walletRPC {
			ledgerRPC.Close()
		}
	}

	abiJSON, err := readABI(cfg.ContractABIPath)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	client, err := ledger.NewEVMClient(ledgerRPC, ledger.EVMConfig{
		Contract:     cfg.ContractAddress,
		ABI:          abiJSON,
		PollInterval: cfg.PollInterval,
		Signer:       walletRPC,
	})
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	logger.Info("using evm ledger", "contract", cfg.ContractAddress, "rpc", cfg.LedgerRPCURL, "wallet_rpc", cfg.WalletRPCURL)
	return wallet.NewRPCProvider(walletRPC), client, closeAll, nil
}

func readABI(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read contract abi %s: %w", path, err)
	}
	return string(raw), nil
}
