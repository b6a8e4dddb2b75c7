package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultAppName          = "CoffeeATM"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultPollInterval     = time.Second
	defaultLedgerBackend    = LedgerBackendEVM
	defaultWalletRPCURL     = "http://127.0.0.1:8545"
	defaultContractAddress  = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	defaultDepositAmount    = 1000
	defaultWithdrawAmount   = 300
	defaultConnectRateLimit = 10
	defaultEventExchange    = "coffee_atm.events"
	defaultKafkaTopic       = "coffee_atm.events"
	defaultTokenSymbol      = "ETH"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
)

// Ledger backends selectable through LEDGER_BACKEND.
const (
	LedgerBackendEVM     = "evm"
	LedgerBackendSandbox = "sandbox"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	RedisURL       string
	AMQPURL        string
	EventExchange  string
	KafkaBrokers   []string
	KafkaTopic     string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	LedgerBackend    string
	WalletRPCURL     string
	LedgerRPCURL     string
	ContractAddress  string
	ContractABIPath  string
	CatalogPath      string
	OperationTimeout time.Duration
	PollInterval     time.Duration

	DepositAmount         int64
	WithdrawAmount        int64
	SandboxInitialBalance int64
	SandboxAccount        string
	ConnectRateLimit      int

	TokenDecimals int32
	TokenSymbol   string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		RedisURL:        os.Getenv("REDIS_URL"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		EventExchange:   getEnv("EVENT_EXCHANGE", defaultEventExchange),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", defaultKafkaTopic),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		LedgerBackend:   strings.ToLower(getEnv("LEDGER_BACKEND", defaultLedgerBackend)),
		WalletRPCURL:    getEnv("WALLET_RPC_URL", defaultWalletRPCURL),
		ContractAddress: getEnv("CONTRACT_ADDRESS", defaultContractAddress),
		ContractABIPath: os.Getenv("CONTRACT_ABI_PATH"),
		CatalogPath:     os.Getenv("CATALOG_PATH"),
		PollInterval:    defaultPollInterval,
		SandboxAccount:  os.Getenv("SANDBOX_ACCOUNT"),
		TokenSymbol:     getEnv("TOKEN_SYMBOL", defaultTokenSymbol),
	}
	cfg.LedgerRPCURL = getEnv("LEDGER_RPC_URL", cfg.WalletRPCURL)

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.OperationTimeout, err = getDuration("OPERATION_TIMEOUT", 0); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = getDuration("CONFIRMATION_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.DepositAmount, err = getInt64("DEPOSIT_AMOUNT", defaultDepositAmount); err != nil {
		return Config{}, err
	}
	if cfg.WithdrawAmount, err = getInt64("WITHDRAW_AMOUNT", defaultWithdrawAmount); err != nil {
		return Config{}, err
	}
	if cfg.SandboxInitialBalance, err = getInt64("SANDBOX_INITIAL_BALANCE", 0); err != nil {
		return Config{}, err
	}
	limit, err := getInt64("CONNECT_RATE_LIMIT", defaultConnectRateLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.ConnectRateLimit = int(limit)
	decimals, err := getInt64("TOKEN_DECIMALS", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenDecimals = int32(decimals)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LedgerBackend {
	case LedgerBackendEVM:
		if !common.IsHexAddress(c.ContractAddress) {
			return fmt.Errorf("CONTRACT_ADDRESS %q is not a hex address", c.ContractAddress)
		}
		if c.WalletRPCURL == "" {
			return fmt.Errorf("WALLET_RPC_URL must be set when LEDGER_BACKEND=%s", LedgerBackendEVM)
		}
	case LedgerBackendSandbox:
		if c.SandboxAccount != "" && !common.IsHexAddress(c.SandboxAccount) {
			return fmt.Errorf("SANDBOX_ACCOUNT %q is not a hex address", c.SandboxAccount)
		}
		if c.SandboxInitialBalance < 0 {
			return fmt.Errorf("SANDBOX_INITIAL_BALANCE must not be negative")
		}
	default:
		return fmt.Errorf("unsupported LEDGER_BACKEND %q", c.LedgerBackend)
	}
	if c.DepositAmount <= 0 || c.WithdrawAmount <= 0 {
		return fmt.Errorf("DEPOSIT_AMOUNT and WITHDRAW_AMOUNT must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("CONFIRMATION_POLL_INTERVAL must be positive")
	}
	if c.OperationTimeout < 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must not be negative")
	}
	if c.TokenDecimals < 0 || c.TokenDecimals > 18 {
		return fmt.Errorf("TOKEN_DECIMALS must be between 0 and 18")
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// Sandbox reports whether the in-process ledger and wallet are selected.
func (c Config) Sandbox() bool {
	return c.LedgerBackend == LedgerBackendSandbox
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return getDuration(durationKey, fallback)
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
