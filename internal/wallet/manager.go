package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/congo-pay/coffee_atm/internal/ledger"
	"github.com/congo-pay/coffee_atm/internal/logging"
)

// Manager owns the connection state machine
// Unavailable -> Disconnected -> Connected. There is no transition back.
type Manager struct {
	provider Provider
	logger   *slog.Logger
	now      func() time.Time

	// connectMu serializes Connect/Resume so that concurrent prompts cannot
	// race each other into the Connected state.
	connectMu sync.Mutex

	mu      sync.RWMutex
	session Session
}

// NewManager builds a manager in the Unavailable state. A nil provider keeps
// it there permanently.
func NewManager(provider Provider, logger *slog.Logger) *Manager {
	return &Manager{
		provider: provider,
		logger:   logging.Component(logger, "wallet"),
		now:      time.Now,
	}
}

// DetectCapability moves Unavailable to Disconnected once the wallet answers.
// It is idempotent and a no-op past Unavailable.
func (m *Manager) DetectCapability(ctx context.Context) State {
	m.mu.RLock()
	state := m.session.State
	m.mu.RUnlock()
	if state != StateUnavailable || m.provider == nil {
		return state
	}

	if !m.provider.Available(ctx) {
		return StateUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.State == StateUnavailable {
		m.session.WalletAvailable = true
		m.session.State = StateDisconnected
		m.logger.Info("wallet capability detected")
	}
	return m.session.State
}

// Connect requests account access and binds the first account. Calling it
// while Connected returns the current session without prompting again.
// Failures leave the state untouched.
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	current := m.Session()
	switch current.State {
	case StateConnected:
		return current, nil
	case StateUnavailable:
		if m.DetectCapability(ctx) == StateUnavailable {
			return current, ErrCapabilityUnavailable
		}
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		m.logger.Warn("wallet connection failed", slog.Any("error", err))
		switch {
		case errors.Is(err, ErrConnectionRejected), errors.Is(err, ErrCapabilityUnavailable):
			return m.Session(), err
		default:
			return m.Session(), fmt.Errorf("%w: %v", ErrConnectionRejected, err)
		}
	}
	if len(accounts) == 0 {
		m.logger.Warn("wallet returned no accounts")
		return m.Session(), fmt.Errorf("%w: no accounts granted", ErrConnectionRejected)
	}

	return m.bind(accounts[0]), nil
}

// Resume binds an account the wallet already authorized, without prompting.
// It is a no-op unless the manager is Disconnected and the wallet exposes an
// account.
func (m *Manager) Resume(ctx context.Context) (Session, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if m.DetectCapability(ctx) != StateDisconnected {
		return m.Session(), nil
	}
	accounts, err := m.provider.Accounts(ctx)
	if err != nil {
		return m.Session(), fmt.Errorf("list wallet accounts: %w", err)
	}
	if len(accounts) == 0 {
		m.logger.Debug("no previously authorized account")
		return m.Session(), nil
	}
	return m.bind(accounts[0]), nil
}

func (m *Manager) bind(account string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.WalletAvailable = true
	m.session.State = StateConnected
	m.session.Account = account
	m.session.ConnectedAt = m.now().UTC()
	m.logger.Info("wallet connected", slog.String("account", account))
	return m.session
}

// Session returns a snapshot of the connection.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Account returns the bound account or ledger.ErrNotConnected.
func (m *Manager) Account() (string, error) {
	s := m.Session()
	if !s.Connected() {
		return "", ledger.ErrNotConnected
	}
	return s.Account, nil
}
