// Package timer implements the one-shot event scheduler of spec.md §6.3:
// add_oneshot/cancel/now_ns, used by the decrementer, DMA channels, SCSI
// reselection, serial ports and the floppy controller. It is grounded on
// the teacher's emu/event package (a sorted relative-delta linked list
// driven by Advance(cycles)) generalized from a cycle-relative list to an
// absolute-deadline list driven by the shared TimeBase, since devices
// here schedule in wall/virtual nanoseconds rather than channel cycles.
package timer

import (
	"sort"
	"sync"

	"github.com/oldmac/ppc32/internal/timebase"
)

// ID identifies a scheduled one-shot event so it can be cancelled.
type ID uint64

// Callback is invoked when a one-shot timer expires.
type Callback func()

type entry struct {
	id       ID
	deadline uint64
	cb       Callback
}

// Service is the timer scheduler a Machine hands to every device.
type Service struct {
	mu      sync.Mutex
	tb      *timebase.TimeBase
	nextID  ID
	entries []entry
}

func New(tb *timebase.TimeBase) *Service {
	return &Service{tb: tb}
}

// AddOneshot schedules cb to run approximately nsFromNow nanoseconds of
// virtual time from now.
func (s *Service) AddOneshot(nsFromNow uint64, cb Callback) ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	deadline := s.tb.NowNs() + nsFromNow
	s.entries = append(s.entries, entry{id: id, deadline: deadline, cb: cb})
	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].deadline < s.entries[j].deadline })
	return id
}

// Cancel removes a pending timer; a no-op if it already fired.
func (s *Service) Cancel(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// NowNs is the §6.3 now_ns() passthrough.
func (s *Service) NowNs() uint64 { return s.tb.NowNs() }

// Pending reports whether any timer is still scheduled — the interpreter
// loop (§4.5 step 5) uses this to decide whether to keep checking for
// expirations at basic-block boundaries even while no instruction work is
// pending.
func (s *Service) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) > 0
}

// RunExpired fires every callback whose deadline has passed. Must only be
// called between guest instructions (spec.md §5's suspension-point rule):
// callbacks may mutate device state and raise/lower interrupt lines but
// must never re-enter the interpreter.
func (s *Service) RunExpired() {
	now := s.tb.NowNs()
	var due []entry
	s.mu.Lock()
	i := 0
	for i < len(s.entries) && s.entries[i].deadline <= now {
		i++
	}
	due, s.entries = s.entries[:i], s.entries[i:]
	s.mu.Unlock()

	for _, e := range due {
		e.cb()
	}
}

// NextDeadline returns the soonest pending deadline and whether one
// exists, letting the interpreter loop compute next_event_cycles.
func (s *Service) NextDeadline() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return 0, false
	}
	return s.entries[0].deadline, true
}
