package cpu

import (
	"testing"

	"github.com/oldmac/ppc32/internal/except"
	"github.com/oldmac/ppc32/internal/state"
)

func TestFpUnavailableFaultsBeforeTouchingState(t *testing.T) {
	c := newTestCtx() // MSR[FP] clear by default
	c.State.FPR[1] = state.FprFromFloat64(1.0)
	f := opFadd(c, mkX(1, 2, 3, false, false))
	if f.Cause != except.FPUnavailable {
		t.Fatalf("fadd with MSR[FP]=0 should fault FPUnavailable, got %+v", f)
	}
	if c.State.FPR[1].Float64() != 1.0 {
		t.Errorf("fadd must not touch FPR before the availability check")
	}
}

func TestOpFaddComputesSum(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[2] = state.FprFromFloat64(1.5)
	c.State.FPR[3] = state.FprFromFloat64(2.25)
	opFadd(c, mkX(1, 2, 3, false, false))
	if got := c.State.FPR[1].Float64(); got != 3.75 {
		t.Errorf("fadd = %v, want 3.75", got)
	}
}

func TestOpFmulReadsFRC(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[2] = state.FprFromFloat64(2.0)
	c.State.FPR[5] = state.FprFromFloat64(3.0)
	// A-form: rD bits25-21, rA bits20-16, rC bits10-6 (rB ignored).
	op := (uint32(1) << 21) | (uint32(2) << 16) | (uint32(5) << 6)
	opFmul(c, op)
	if got := c.State.FPR[1].Float64(); got != 6.0 {
		t.Errorf("fmul rD,rA,rC = %v, want 6.0", got)
	}
}

func TestOpFnegFlipsSignBit(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[3] = state.FprFromFloat64(5.0)
	opFneg(c, mkX(1, 0, 3, false, false))
	if got := c.State.FPR[1].Float64(); got != -5.0 {
		t.Errorf("fneg(5.0) = %v, want -5.0", got)
	}
}

func TestOpFabsClearsSignBit(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[3] = state.FprFromFloat64(-5.0)
	opFabs(c, mkX(1, 0, 3, false, false))
	if got := c.State.FPR[1].Float64(); got != 5.0 {
		t.Errorf("fabs(-5.0) = %v, want 5.0", got)
	}
}

func TestOpFrspRoundsToSingle(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[3] = state.FprFromFloat64(1.0 / 3.0)
	opFrsp(c, mkX(1, 0, 3, false, false))
	got := c.State.FPR[1].Float64()
	want := float64(float32(1.0 / 3.0))
	if got != want {
		t.Errorf("frsp(1/3) = %v, want %v", got, want)
	}
}

func TestOpFcmpuSetsCRField(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[1] = state.FprFromFloat64(1.0)
	c.State.FPR[2] = state.FprFromFloat64(2.0)
	opFcmpu(c, mkX(0, 1, 2, false, false))
	if c.State.CRField(0) != state.CrLT {
		t.Errorf("fcmpu(1.0,2.0) CR0 = %#x, want LT", c.State.CRField(0))
	}
}

func TestOpFctiwzSaturatesAndTruncates(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[3] = state.FprFromFloat64(3.9)
	opFctiwz(c, mkX(1, 0, 3, false, false))
	if int32(uint32(c.State.FPR[1].Uint64())) != 3 {
		t.Errorf("fctiwz(3.9) = %d, want 3 (truncated toward zero)", int32(uint32(c.State.FPR[1].Uint64())))
	}

	c.State.FPR[3] = state.FprFromFloat64(1e20)
	opFctiwz(c, mkX(1, 0, 3, false, false))
	if int32(uint32(c.State.FPR[1].Uint64())) != 2147483647 {
		t.Errorf("fctiwz(1e20) did not saturate to INT32_MAX")
	}
}

func TestOpFnabsForcesSignBit(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[3] = state.FprFromFloat64(5.0)
	opFnabs(c, mkX(1, 0, 3, false, false))
	if got := c.State.FPR[1].Float64(); got != -5.0 {
		t.Errorf("fnabs(5.0) = %v, want -5.0", got)
	}

	c.State.FPR[3] = state.FprFromFloat64(-5.0)
	opFnabs(c, mkX(1, 0, 3, false, false))
	if got := c.State.FPR[1].Float64(); got != -5.0 {
		t.Errorf("fnabs(-5.0) = %v, want -5.0", got)
	}
}

func TestOpFctiwUsesFPSCRRoundingMode(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[3] = state.FprFromFloat64(3.5)

	c.State.FPSCR = 0 // RN = 00, round to nearest-even
	opFctiw(c, mkX(1, 0, 3, false, false))
	if got := int32(uint32(c.State.FPR[1].Uint64())); got != 4 {
		t.Errorf("fctiw(3.5) under round-nearest-even = %d, want 4", got)
	}

	c.State.FPSCR = 1 // RN = 01, round toward zero
	opFctiw(c, mkX(1, 0, 3, false, false))
	if got := int32(uint32(c.State.FPR[1].Uint64())); got != 3 {
		t.Errorf("fctiw(3.5) under round-toward-zero = %d, want 3", got)
	}
}

func TestOpFctiwSaturates(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPSCR = 0
	c.State.FPR[3] = state.FprFromFloat64(1e20)
	opFctiw(c, mkX(1, 0, 3, false, false))
	if got := int32(uint32(c.State.FPR[1].Uint64())); got != 2147483647 {
		t.Errorf("fctiw(1e20) did not saturate to INT32_MAX, got %d", got)
	}
}

func TestOpFrspUsesFPSCRRoundingMode(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPR[3] = state.FprFromFloat64(1.0 / 3.0)

	c.State.FPSCR = 0 // RN = 00, matches Go's default narrowing
	opFrsp(c, mkX(1, 0, 3, false, false))
	wantNearest := float64(float32(1.0 / 3.0))
	if got := c.State.FPR[1].Float64(); got != wantNearest {
		t.Errorf("frsp(1/3) nearest = %v, want %v", got, wantNearest)
	}

	c.State.FPSCR = 2 // RN = 10, round toward +infinity
	opFrsp(c, mkX(1, 0, 3, false, false))
	gotUp := c.State.FPR[1].Float64()
	if gotUp < wantNearest {
		t.Errorf("frsp(1/3) round-toward-+inf = %v, want >= nearest result %v", gotUp, wantNearest)
	}
}

func TestOpMffsMtfsfRoundTrip(t *testing.T) {
	c := newTestCtx()
	c.State.MSR |= state.MsrFP
	c.State.FPSCR = 0x12340000
	opMffs(c, mkX(1, 0, 0, false, false))
	c.State.FPSCR = 0
	opMtfsf(c, mkX(0, 0, 1, false, false))
	if c.State.FPSCR != 0x12340000 {
		t.Errorf("mffs/mtfsf round trip = %#x, want 0x12340000", c.State.FPSCR)
	}
}
