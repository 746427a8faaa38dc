// Package routing models the output matrix of an 8-output MIDI channel router.
package routing

import (
	"errors"
	"fmt"
	"strings"
)

// Matrix dimensions of the MIDI 1-8 family
const (
	Outputs      = 8
	Channels     = 16
	Destinations = Channels + 1 // 16 MIDI channels + real-time
	RealTime     = Channels     // destination index of the real-time slot
)

// ErrInvalidIndex reports an output or destination outside the matrix.
var ErrInvalidIndex = errors.New("invalid index")

// Masks holds one output mask per destination, channel 1 first, real-time last.
type Masks [Destinations]uint8

// Table is the routing matrix: for every output, the destinations it receives.
// The zero value is an empty table. Table is a value type; copies are independent.
type Table struct {
	grid [Outputs][Destinations]bool
}

// CheckIndex validates an (output, destination) pair before it reaches the table.
func CheckIndex(output, destination int) error {
	if output < 0 || output >= Outputs {
		return fmt.Errorf("%w: output %d not in [0,%d)", ErrInvalidIndex, output, Outputs)
	}
	if destination < 0 || destination >= Destinations {
		return fmt.Errorf("%w: destination %d not in [0,%d)", ErrInvalidIndex, destination, Destinations)
	}
	return nil
}

func mustIndex(output, destination int) {
	if err := CheckIndex(output, destination); err != nil {
		panic(err)
	}
}

// FromMasks rebuilds a table from per-destination masks.
func FromMasks(masks Masks) Table {
	var t Table
	t.LoadMasks(masks)
	return t
}

// Set enables or disables one output for one destination.
// It panics with ErrInvalidIndex on an out-of-range index.
func (t *Table) Set(output, destination int, enabled bool) {
	mustIndex(output, destination)
	t.grid[output][destination] = enabled
}

// Toggle flips one cell and returns its new state.
func (t *Table) Toggle(output, destination int) bool {
	mustIndex(output, destination)
	t.grid[output][destination] = !t.grid[output][destination]
	return t.grid[output][destination]
}

// Enabled reports whether output receives destination.
func (t Table) Enabled(output, destination int) bool {
	mustIndex(output, destination)
	return t.grid[output][destination]
}

// SetRow sets every destination of one output ("All" / "None").
func (t *Table) SetRow(output int, enabled bool) {
	mustIndex(output, 0)
	for d := range t.grid[output] {
		t.grid[output][d] = enabled
	}
}

// SetColumn sets one destination on every output.
func (t *Table) SetColumn(destination int, enabled bool) {
	mustIndex(0, destination)
	for o := range t.grid {
		t.grid[o][destination] = enabled
	}
}

// Clear disables everything.
func (t *Table) Clear() {
	t.grid = [Outputs][Destinations]bool{}
}

// ChannelMask returns the output mask of one destination: bit o is set iff output o is enabled.
func (t Table) ChannelMask(destination int) uint8 {
	mustIndex(0, destination)
	var mask uint8
	for o := 0; o < Outputs; o++ {
		if t.grid[o][destination] {
			mask |= 1 << o
		}
	}
	return mask
}

// Masks returns all 17 destination masks in wire order.
func (t Table) Masks() Masks {
	var masks Masks
	for d := range masks {
		masks[d] = t.ChannelMask(d)
	}
	return masks
}

// LoadMasks replaces the table content with the given masks.
func (t *Table) LoadMasks(masks Masks) {
	for d, mask := range masks {
		for o := 0; o < Outputs; o++ {
			t.grid[o][d] = mask&(1<<o) != 0
		}
	}
}

// OutputsFor lists the outputs enabled for a destination.
func (t Table) OutputsFor(destination int) []int {
	mask := t.ChannelMask(destination)
	var outputs []int
	for o := 0; o < Outputs; o++ {
		if mask&(1<<o) != 0 {
			outputs = append(outputs, o)
		}
	}
	return outputs
}

// DestinationsFor lists the destinations enabled on an output.
func (t Table) DestinationsFor(output int) []int {
	mustIndex(output, 0)
	var dests []int
	for d, on := range t.grid[output] {
		if on {
			dests = append(dests, d)
		}
	}
	return dests
}

// Equal compares two tables cell by cell.
func (t Table) Equal(other Table) bool {
	return t.grid == other.grid
}

// IsEmpty reports whether no output is enabled anywhere.
func (t Table) IsEmpty() bool {
	return t.grid == [Outputs][Destinations]bool{}
}

// DestinationName is the front-panel label of a destination: "1".."16" or "RT".
func DestinationName(destination int) string {
	if destination == RealTime {
		return "RT"
	}
	return fmt.Sprintf("%d", destination+1)
}

// String renders the matrix with one row per output.
func (t Table) String() string {
	var b strings.Builder

	b.WriteString("        ")
	for d := 0; d < Destinations; d++ {
		fmt.Fprintf(&b, "%3s", DestinationName(d))
	}
	b.WriteString("\n")

	for o := 0; o < Outputs; o++ {
		fmt.Fprintf(&b, "Out %d   ", o+1)
		for d := 0; d < Destinations; d++ {
			if t.grid[o][d] {
				b.WriteString("  x")
			} else {
				b.WriteString("  .")
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}
