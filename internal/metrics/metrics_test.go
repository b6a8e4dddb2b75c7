package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOperationCounters(t *testing.T) {
	before := testutil.ToFloat64(operations.WithLabelValues("withdraw", OutcomeConfirmed))

	OperationStarted()
	if got := testutil.ToFloat64(inFlight); got != 1 {
		t.Fatalf("expected in-flight 1, got %v", got)
	}
	OperationFinished("withdraw", OutcomeConfirmed, 2*time.Second)
	if got := testutil.ToFloat64(inFlight); got != 0 {
		t.Fatalf("expected in-flight 0, got %v", got)
	}
	if got := testutil.ToFloat64(operations.WithLabelValues("withdraw", OutcomeConfirmed)); got != before+1 {
		t.Fatalf("expected %v confirmed withdrawals, got %v", before+1, got)
	}
}

func TestPurchaseRecorded(t *testing.T) {
	before := testutil.ToFloat64(purchaseRevenue)
	PurchaseRecorded("Brew Special", 150)
	if got := testutil.ToFloat64(purchaseRevenue); got != before+150 {
		t.Fatalf("expected revenue to grow by 150, got %v", got-before)
	}
	if got := testutil.ToFloat64(purchases.WithLabelValues("Brew Special")); got < 1 {
		t.Fatalf("expected purchase counted, got %v", got)
	}
}
