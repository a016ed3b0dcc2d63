// Package hostfp resolves FPSCR's two-bit RN field into the rounding
// behavior spec.md §4.4.2 requires of frsp/fctiw/fctiwz: "sensitive
// builtins must use the FPSCR-derived mode, not the default." Go's
// float64->float32 conversion and the math package only ever round to
// nearest-even, so the other three IEEE rounding directions are computed
// here instead of assumed from host hardware state. Description reports
// the host's floating-point capability bits via golang.org/x/sys/cpu,
// the same dependency the teacher's go.mod already declares, so boot
// logging can record what the interpreter is actually running on.
package hostfp

import (
	"fmt"
	"math"
	"math/big"
	"runtime"

	"golang.org/x/sys/cpu"
)

// RoundMode mirrors the PowerPC FPSCR[RN] encoding (spec.md §4.4.2)
// directly: the numeric value of each constant IS the two-bit field.
type RoundMode uint8

const (
	RoundNearestEven    RoundMode = 0 // FPSCR RN = 00
	RoundTowardZero     RoundMode = 1 // FPSCR RN = 01
	RoundTowardPositive RoundMode = 2 // FPSCR RN = 10
	RoundTowardNegative RoundMode = 3 // FPSCR RN = 11
)

// FromFPSCR extracts the rounding mode from the low two bits of an FPSCR
// value, where callers pass the architected register verbatim.
func FromFPSCR(fpscr uint32) RoundMode { return RoundMode(fpscr & 0x3) }

func (m RoundMode) bigMode() big.RoundingMode {
	switch m {
	case RoundTowardZero:
		return big.ToZero
	case RoundTowardPositive:
		return big.ToPositiveInf
	case RoundTowardNegative:
		return big.ToNegativeInf
	default:
		return big.ToNearestEven
	}
}

// RoundFloat64ToFloat32 performs the frsp narrowing (spec.md:150) under
// mode instead of Go's fixed round-to-nearest-even conversion. NaNs and
// infinities pass through unrounded — no rounding mode changes how they
// narrow.
func RoundFloat64ToFloat32(v float64, mode RoundMode) float32 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
		return float32(v)
	}
	bf := new(big.Float).SetPrec(24).SetMode(mode.bigMode()).SetFloat64(v)
	f32, _ := bf.Float32()
	return f32
}

// RoundToInt32 performs the fctiw narrowing (spec.md:272) under mode,
// then saturates to the signed 32-bit range the way fctiwz already did
// for its fixed round-toward-zero case.
func RoundToInt32(v float64, mode RoundMode) int32 {
	var r float64
	switch mode {
	case RoundTowardZero:
		r = math.Trunc(v)
	case RoundTowardPositive:
		r = math.Ceil(v)
	case RoundTowardNegative:
		r = math.Floor(v)
	default:
		r = math.RoundToEven(v)
	}
	switch {
	case r >= 2147483647:
		return 2147483647
	case r <= -2147483648:
		return -2147483648
	default:
		return int32(r)
	}
}

// Description reports the host architecture's floating-point-relevant
// feature bits, for the boot-time diagnostic log line (machine/machine.go).
// It never gates correctness: RoundFloat64ToFloat32/RoundToInt32 above are
// pure software and behave identically regardless of what the host CPU
// supports.
func Description() string {
	switch runtime.GOARCH {
	case "amd64", "386":
		return fmt.Sprintf("%s sse2=%v avx=%v avx2=%v", runtime.GOARCH, cpu.X86.HasSSE2, cpu.X86.HasAVX, cpu.X86.HasAVX2)
	case "arm64":
		return fmt.Sprintf("arm64 fp=%v asimd=%v", cpu.ARM64.HasFP, cpu.ARM64.HasASIMD)
	default:
		return runtime.GOARCH + " (software rounding only, no host FPU capability probe for this arch)"
	}
}
