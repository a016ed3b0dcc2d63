// Package debugger is an interactive REPL over a *machine.Machine: step,
// continue, break on a region, inspect/modify registers, and disassemble
// around the current PC. Grounded on the teacher's command/reader
// package (a peterh/liner prompt feeding a parser.ProcessCommand
// dispatcher) and command/command's verb table, generalized from S/370's
// channel/device commands to PowerPC's step/break/reg/disasm verb set.
package debugger

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/oldmac/ppc32/internal/disasm"
	"github.com/oldmac/ppc32/machine"
)

// REPL owns the liner prompt and the set of breakpoints the user has
// armed.
type REPL struct {
	m           *machine.Machine
	breakpoints map[uint32]bool
}

func New(m *machine.Machine) *REPL {
	return &REPL{m: m, breakpoints: make(map[uint32]bool)}
}

var verbs = []string{"step", "continue", "reg", "setreg", "break", "unbreak", "disasm", "reset", "quit", "help"}

// Run drives the prompt loop until the user quits or aborts with Ctrl-C.
func (r *REPL) Run() {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(in string) (matches []string) {
		for _, v := range verbs {
			if strings.HasPrefix(v, in) {
				matches = append(matches, v)
			}
		}
		return matches
	})

	for {
		cmd, err := line.Prompt("ppc32> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			slog.Error("debugger: reading command", "err", err)
			return
		}
		line.AppendHistory(cmd)
		quit, err := r.dispatch(cmd)
		if err != nil {
			fmt.Println("error:", err)
		}
		if quit {
			return
		}
	}
}

func (r *REPL) dispatch(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "quit", "q":
		return true, nil
	case "help":
		fmt.Println(strings.Join(verbs, " "))
		return false, nil
	case "step", "s":
		n := 1
		if len(fields) > 1 {
			n, err = strconv.Atoi(fields[1])
			if err != nil {
				return false, err
			}
		}
		for i := 0; i < n; i++ {
			r.m.Step()
		}
		fmt.Print(r.m.DumpRegs())
		return false, nil
	case "continue", "c":
		if len(r.breakpoints) == 0 {
			r.m.Run()
			return false, nil
		}
		if r.m.RunUntilBreakpoint(r.breakpoints) {
			fmt.Printf("breakpoint hit at %#08x\n", r.m.State.PC)
		}
		return false, nil
	case "reg":
		if len(fields) < 2 {
			fmt.Print(r.m.DumpRegs())
			return false, nil
		}
		v, ok := r.m.GetReg(fields[1])
		if !ok {
			return false, fmt.Errorf("unknown register %q", fields[1])
		}
		fmt.Printf("%s = %#08x\n", fields[1], v)
		return false, nil
	case "setreg":
		if len(fields) != 3 {
			return false, errors.New("usage: setreg <name> <hex>")
		}
		v, perr := strconv.ParseUint(strings.TrimPrefix(fields[2], "0x"), 16, 32)
		if perr != nil {
			return false, perr
		}
		if !r.m.SetReg(fields[1], uint32(v)) {
			return false, fmt.Errorf("unknown register %q", fields[1])
		}
		return false, nil
	case "break", "b":
		if len(fields) != 2 {
			return false, errors.New("usage: break <hex-addr>")
		}
		addr, perr := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 32)
		if perr != nil {
			return false, perr
		}
		r.breakpoints[uint32(addr)] = true
		return false, nil
	case "unbreak":
		if len(fields) != 2 {
			return false, errors.New("usage: unbreak <hex-addr>")
		}
		addr, perr := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 32)
		if perr != nil {
			return false, perr
		}
		delete(r.breakpoints, uint32(addr))
		return false, nil
	case "disasm", "d":
		n := 8
		if len(fields) > 1 {
			n, err = strconv.Atoi(fields[1])
			if err != nil {
				return false, err
			}
		}
		r.printDisasm(n)
		return false, nil
	case "reset":
		r.m.Reset()
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

func (r *REPL) printDisasm(n int) {
	pc, _ := r.m.GetReg("pc")
	addr := pc
	for i := 0; i < n; i++ {
		pa, f := r.m.MMU.TranslateInstr(r.m.State, r.m.Mem, addr)
		if f.Cause != 0 {
			fmt.Printf("%08x: <fault>\n", addr)
			return
		}
		opcode := r.m.Mem.Read(pa, 4, 0)
		fmt.Printf("%08x: %08x  %s\n", addr, opcode, disasm.Disasm(addr, opcode, true))
		addr += 4
	}
}
