package native

import (
	"math"
	"time"

	"github.com/dannyzb/winevent"
)

const (
	infinite      = math.MaxUint32
	waitAbandoned = 0x80
	waitTimeout   = 0x102
)

// Rounds up, so a native wait never ends before the timeout. Negative timeouts are infinite, and
// ones too long to express are clamped below infinite.
func milliseconds(timeout time.Duration) uint32 {
	if timeout < 0 {
		return infinite
	}
	ms := timeout / time.Millisecond
	if timeout%time.Millisecond != 0 {
		ms++
	}
	if ms >= infinite {
		return infinite - 1
	}
	return uint32(ms)
}

func resultOf(ev uint32, count int) winevent.Result {
	switch {
	case ev < uint32(count):
		return winevent.WaitObject0 + winevent.Result(ev)
	case ev >= waitAbandoned && ev < waitAbandoned+uint32(count):
		return winevent.WaitAbandoned
	case ev == waitTimeout:
		return winevent.WaitTimeout
	default:
		return winevent.WaitFailed
	}
}
