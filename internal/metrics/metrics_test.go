package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstructionsTotalIncrements(t *testing.T) {
	r := New()
	r.InstructionsTotal.Add(3)
	if got := testutil.ToFloat64(r.InstructionsTotal); got != 3 {
		t.Errorf("instructions_retired_total = %v, want 3", got)
	}
}

func TestExceptionsTotalIsLabeledByCause(t *testing.T) {
	r := New()
	r.ExceptionsTotal.WithLabelValues("DSI").Inc()
	r.ExceptionsTotal.WithLabelValues("DSI").Inc()
	r.ExceptionsTotal.WithLabelValues("Program").Inc()

	if got := testutil.ToFloat64(r.ExceptionsTotal.WithLabelValues("DSI")); got != 2 {
		t.Errorf("exceptions_total{cause=DSI} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.ExceptionsTotal.WithLabelValues("Program")); got != 1 {
		t.Errorf("exceptions_total{cause=Program} = %v, want 1", got)
	}
}

func TestNewRegistersEveryCollectorExactlyOnce(t *testing.T) {
	r := New()
	if err := r.Registry.Register(r.TLBHits); err == nil {
		t.Errorf("re-registering an already-registered collector should fail")
	}
}
