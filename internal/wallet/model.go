package wallet

import "time"

// State is the wallet connection state.
type State int

const (
	// StateUnavailable means no wallet capability has been detected.
	StateUnavailable State = iota
	// StateDisconnected means a wallet exists but no account is bound.
	StateDisconnected
	// StateConnected means an account is bound and ledger calls are allowed.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	default:
		return "unavailable"
	}
}

// MarshalText renders the state as its string code.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is a read-only snapshot of the connection.
type Session struct {
	WalletAvailable bool      `json:"wallet_available"`
	State           State     `json:"state"`
	Account         string    `json:"account,omitempty"`
	ConnectedAt     time.Time `json:"connected_at"`
}

// Connected reports whether an account is bound.
func (s Session) Connected() bool {
	return s.State == StateConnected && s.Account != ""
}
