package purchase

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one confirmed purchase.
type Record struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Item   string    `json:"item"`
	Price  int64     `json:"price"`
	TxHash string    `json:"tx_hash"`
}

// Ledger is the append-only, in-process purchase log. It is not persisted.
type Ledger struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

// NewLedger creates an empty purchase log.
func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// Record appends a purchase and returns it.
func (l *Ledger) Record(item string, price int64, txHash string) Record {
	rec := Record{
		ID:     uuid.NewString(),
		Time:   l.now().UTC(),
		Item:   item,
		Price:  price,
		TxHash: txHash,
	}
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
	return rec
}

// Records returns a copy of the log, oldest first.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of recorded purchases.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
