// Package timebase implements the monotonic time source of spec.md §3.5 /
// §4.3's decrementer and TBR math. It supports both realtime mode (virtual
// time tracks the host clock) and deterministic mode (virtual time tracks
// instruction count via icnt_factor), matching the teacher's own TOD-clock
// math in emu/cpu/cpu.go's InitializeCPU (seconds-since-1900 scaling) but
// generalized to PowerPC's TBR/DEC pair instead of the 370 TOD clock.
package timebase

import "time"

// TimeBase mirrors spec.md §3.5's struct.
type TimeBase struct {
	wallZero time.Time
	icycles  uint64
	icntFactor uint8
	deterministic bool

	tbrFreqQ32 uint64 // Q32.32-ish fixed point: freq << 32 / 1e9, see TBR
	tbrWrValue uint64
	tbrWrAtNs  uint64 // virtual nowNs() at the last TBL/TBU write

	decWrValue uint32
	decWrAtNs  uint64 // virtual nowNs() at the last DEC write
}

// New creates a TimeBase in realtime mode at the given TBR frequency.
func New(tbrFreqHz uint32) *TimeBase {
	tb := &TimeBase{wallZero: nowFunc()}
	tb.SetFrequency(tbrFreqHz)
	return tb
}

// nowFunc is indirected so tests can substitute a fake clock.
var nowFunc = time.Now

// SetFrequency sets the TBR tick frequency (Hz) — spec.md's tbr_freq_q32.
func (tb *TimeBase) SetFrequency(hz uint32) {
	tb.tbrFreqQ32 = (uint64(hz) << 32) / 1_000_000_000
}

// EnableDeterministic switches virtual time to icycles<<icnt_factor instead
// of the host clock, for reproducible instruction-trace runs.
func (tb *TimeBase) EnableDeterministic(icntFactor uint8) {
	tb.deterministic = true
	tb.icntFactor = icntFactor
}

// AdvanceInstructions bumps the instruction counter that backs
// deterministic mode and the icnt_factor-scaled virtual clock.
func (tb *TimeBase) AdvanceInstructions(n uint64) {
	tb.icycles += n
}

// nowNs returns virtual time in nanoseconds per spec.md §3.5.
func (tb *TimeBase) nowNs() uint64 {
	if tb.deterministic {
		return tb.icycles << tb.icntFactor
	}
	return uint64(nowFunc().Sub(tb.wallZero).Nanoseconds())
}

// NowNs is the public §6.3 now_ns().
func (tb *TimeBase) NowNs() uint64 { return tb.nowNs() }

// TBR returns the 64-bit time-base register value at the current virtual
// time: tbr_wr_value + floor((t - tbr_wr_timestamp) * tbr_freq_q32 / 2^32).
func (tb *TimeBase) TBR() uint64 {
	elapsedNs := tb.nowNs() - tb.tbrWrAtNs
	delta := mulQ32(elapsedNs, tb.tbrFreqQ32)
	return tb.tbrWrValue + delta
}

func mulQ32(ns, freqQ32 uint64) uint64 {
	hi, lo := bitsMul64(ns, freqQ32)
	return (hi << 32) | (lo >> 32)
}

// bitsMul64 performs a 64x64->128 multiply split into high/low halves,
// since Go's uint64 arithmetic alone would overflow for large ns*freq.
func bitsMul64(a, b uint64) (hi, lo uint64) {
	aLo, aHi := a&0xFFFFFFFF, a>>32
	bLo, bHi := b&0xFFFFFFFF, b>>32

	t0 := aLo * bLo
	t1 := aHi*bLo + (t0 >> 32)
	t2 := aLo*bHi + (t1 & 0xFFFFFFFF)
	hi = aHi*bHi + (t1 >> 32) + (t2 >> 32)
	lo = (t2 << 32) | (t0 & 0xFFFFFFFF)
	return
}

// WriteTBL/WriteTBU handle mtspr to TBL/TBU (268/269 supervisor write
// forms at 284/285): the architected registers are write-only via those
// SPR numbers and immediately rebase tbr_wr_value/timestamp.
func (tb *TimeBase) WriteTBL(lower uint32) {
	cur := tb.TBR()
	tb.tbrWrValue = (cur &^ 0xFFFFFFFF) | uint64(lower)
	tb.tbrWrAtNs = tb.nowNs()
}

func (tb *TimeBase) WriteTBU(upper uint32) {
	cur := tb.TBR()
	tb.tbrWrValue = (uint64(upper) << 32) | (cur & 0xFFFFFFFF)
	tb.tbrWrAtNs = tb.nowNs()
}

// WriteDEC rearms the decrementer — spec.md §4.3: "outstanding decrementer
// timer is cancelled and re-armed on every write to DEC SPR."
func (tb *TimeBase) WriteDEC(value uint32) {
	tb.decWrValue = value
	tb.decWrAtNs = tb.nowNs()
}

// DecrementerExpired reports whether the one-shot decrementer timer
// (dec_wr_timestamp + dec_wr_value * tbr_period_ns) has elapsed.
func (tb *TimeBase) DecrementerExpired() bool {
	periodNs := (uint64(1) << 32) / tb.tbrFreqQ32
	deadline := tb.decWrAtNs + uint64(tb.decWrValue)*periodNs
	return tb.nowNs() >= deadline
}
