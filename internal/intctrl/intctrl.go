// Package intctrl is the interrupt-line contract of spec.md §6.2: devices
// assert or release a single external interrupt line toward the core,
// which OR-reduces every asserted source into the one signal the
// interpreter polls at instruction boundaries. Grounded on the teacher's
// sys_channel IRQ-pending-bitmask approach in emu/sys_channel, narrowed
// from S/370's per-channel subclass codes to PowerPC's single external
// line (spec.md's Non-goals exclude a full open/programmable interrupt
// controller).
package intctrl

import "sync"

// SourceID identifies one interrupt-raising device.
type SourceID int

// Controller OR-reduces every asserted SourceID into a single line and
// notifies a core-supplied callback on each edge.
type Controller struct {
	mu       sync.Mutex
	asserted map[SourceID]bool
	onChange func(level bool)
}

// New builds a controller that calls onChange(true/false) whenever the
// OR-reduced line transitions.
func New(onChange func(level bool)) *Controller {
	return &Controller{asserted: make(map[SourceID]bool), onChange: onChange}
}

func (c *Controller) level() bool {
	for _, v := range c.asserted {
		if v {
			return true
		}
	}
	return false
}

// Assert raises src's line.
func (c *Controller) Assert(src SourceID) {
	c.mu.Lock()
	before := c.level()
	c.asserted[src] = true
	after := c.level()
	c.mu.Unlock()
	if before != after {
		c.onChange(after)
	}
}

// Release lowers src's line.
func (c *Controller) Release(src SourceID) {
	c.mu.Lock()
	before := c.level()
	c.asserted[src] = false
	after := c.level()
	c.mu.Unlock()
	if before != after {
		c.onChange(after)
	}
}

// Pending reports the current OR-reduced line state.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level()
}
