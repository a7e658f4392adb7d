package window

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShiftOneDayVacatesBitZero(t *testing.T) {
	w := Default()
	for _, m := range []Bitmask{0, 1, 0b1010, 0b1111, 1 << 27, w.mask()} {
		require.Zero(t, w.ShiftOneDay(m)&1, "mask %b", m)
	}
}

func TestShiftOneDayZeroIsZero(t *testing.T) {
	require.Equal(t, Bitmask(0), Default().ShiftOneDay(0))
}

func TestEveryBitAgesOutAfterWidthShifts(t *testing.T) {
	w := Default()
	m := w.mask()
	for i := uint(0); i < w.Width(); i++ {
		m = w.ShiftOneDay(m)
	}
	require.Equal(t, Bitmask(0), m)
}

func TestCombineCommutativeWithIdentity(t *testing.T) {
	w := Default()
	cases := []struct{ a, b Bitmask }{
		{0, 0},
		{0b0101, 0b1010},
		{1, 1 << 27},
		{w.mask(), 0b1},
	}
	for _, tc := range cases {
		require.Equal(t, w.Combine(tc.a, tc.b), w.Combine(tc.b, tc.a))
	}
	require.Equal(t, Bitmask(0b1010), w.Combine(0, 0b1010))
	require.Equal(t, Bitmask(0b1010), w.Combine(0b1010, 0))
}

func TestCombineTruncatesToWidth(t *testing.T) {
	w := New(4)
	require.Equal(t, Bitmask(0b1111), w.Combine(0b11111, 0b10001))
}

func TestAdvanceNewEntity(t *testing.T) {
	w := New(4)
	require.Equal(t, Bitmask(0b0001), w.Advance(0, true))
}

func TestAdvanceInactiveDayShiftsHistory(t *testing.T) {
	w := New(4)
	require.Equal(t, Bitmask(0b0010), w.Advance(0b0001, false))
}

func TestAdvanceDropsBoundaryBit(t *testing.T) {
	w := New(4)
	require.Equal(t, Bitmask(0), w.Advance(0b1000, false))
}

func TestAdvanceSaturatedWindowStaysFull(t *testing.T) {
	w := Default()
	full := w.mask()
	require.Equal(t, full, w.Advance(full, true))
}

func TestReplayConvergesAfterWindowElapses(t *testing.T) {
	// The same observation stream applied to an empty state and to an
	// arbitrary pre-seeded state must agree once the window has elapsed.
	w := New(4)
	observations := []bool{true, false, true, true, false, true, false, false, true}

	fromEmpty := Bitmask(0)
	fromSeeded := Bitmask(0b1011)
	for i, active := range observations {
		fromEmpty = w.Advance(fromEmpty, active)
		fromSeeded = w.Advance(fromSeeded, active)
		if uint(i+1) >= w.Width() {
			require.Equal(t, fromEmpty, fromSeeded, "day %d", i)
		}
	}
}

func TestDaysSinceSeen(t *testing.T) {
	require.Equal(t, -1, Bitmask(0).DaysSinceSeen())
	require.Equal(t, 0, Bitmask(0b0001).DaysSinceSeen())
	require.Equal(t, 1, Bitmask(0b0110).DaysSinceSeen())
	require.Equal(t, 27, Bitmask(1<<27).DaysSinceSeen())
}

func TestActiveDayCount(t *testing.T) {
	require.Equal(t, 0, Bitmask(0).ActiveDayCount())
	require.Equal(t, 3, Bitmask(0b0111).ActiveDayCount())
	require.Equal(t, 28, Default().mask().ActiveDayCount())
}

func TestActiveOnDay(t *testing.T) {
	m := Bitmask(0b0101)
	require.True(t, m.ActiveOnDay(0))
	require.False(t, m.ActiveOnDay(1))
	require.True(t, m.ActiveOnDay(2))
	require.False(t, m.ActiveOnDay(40))
}
