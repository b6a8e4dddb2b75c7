package ledger

// SeedBalance is a test helper that sets the balance for an account when using the sandbox ledger.
func SeedBalance(l Client, account string, amount int64) {
	if mem, ok := l.(*Sandbox); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[key(account)] = amount
	}
}
