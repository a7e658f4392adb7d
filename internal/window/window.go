// Package window implements the fixed-width rolling activity bitmask used by
// the daily rollup. Bit 0 of a mask is the record's as-of day, bit 1 the day
// before, and so on up to the window width.
package window

import "math/bits"

// DefaultWidth is the production window width in days.
const DefaultWidth = 28

// Bitmask holds one activity mask. Only the low Window width bits are
// significant; every operation masks its result back down.
type Bitmask uint32

// Window binds the bitmask operations to a width. Widths above 32 are not
// representable in a Bitmask and are clamped.
type Window struct {
	width uint
}

// New returns a Window of the given width in days.
func New(width uint) Window {
	if width == 0 || width > 32 {
		width = 32
	}
	return Window{width: width}
}

// Default returns the production 28-day window.
func Default() Window {
	return New(DefaultWidth)
}

// Width reports the window width in days.
func (w Window) Width() uint {
	return w.width
}

func (w Window) mask() Bitmask {
	if w.width == 32 {
		return Bitmask(^uint32(0))
	}
	return Bitmask(1)<<w.width - 1
}

// Truncate clears any bits beyond the window width.
func (w Window) Truncate(b Bitmask) Bitmask {
	return b & w.mask()
}

// ShiftOneDay ages a mask by one day: every recorded day moves one position
// toward the most-significant bit and the day that falls off the window edge
// is discarded. Bit 0 is always vacated.
func (w Window) ShiftOneDay(b Bitmask) Bitmask {
	return (b << 1) & w.mask()
}

// Combine merges two masks with bitwise OR, truncated to the window width.
func (w Window) Combine(a, b Bitmask) Bitmask {
	return (a | b) & w.mask()
}

// Advance computes the next day's mask from the previous day's mask and the
// current day's observation flag.
func (w Window) Advance(previous Bitmask, activeToday bool) Bitmask {
	next := w.ShiftOneDay(previous)
	if activeToday {
		next |= 1
	}
	return next
}

// DaysSinceSeen returns the offset in days of the most recent active day, or
// -1 when the mask is empty. A mask with bit 0 set yields 0.
func (b Bitmask) DaysSinceSeen() int {
	if b == 0 {
		return -1
	}
	return bits.TrailingZeros32(uint32(b))
}

// ActiveDayCount returns the number of active days recorded in the mask.
func (b Bitmask) ActiveDayCount() int {
	return bits.OnesCount32(uint32(b))
}

// ActiveOnDay reports whether the day at the given offset was active.
// Offset 0 is the as-of day.
func (b Bitmask) ActiveOnDay(offset uint) bool {
	if offset > 31 {
		return false
	}
	return b&(1<<offset) != 0
}
