package winevent

import (
	"fmt"
	"time"
)

// Result is the outcome of a wait. The values match the Win32 WAIT_* constants so they can be
// passed through to code that expects them.
type Result int32

const (
	WaitObject0 Result = 0
	// Defined for parity with Win32. Events here have no owner to abandon them, so it's never
	// returned.
	WaitAbandoned Result = 0x80
	WaitTimeout   Result = 0x102
	WaitFailed    Result = -1
)

// Infinite disables the timeout of a wait. Any negative timeout is treated the same way.
const Infinite time.Duration = -1

// MaxWaitObjects is the largest wait set accepted, the same as Win32's MAXIMUM_WAIT_OBJECTS.
// Larger sets would produce indices that collide with WaitAbandoned.
const MaxWaitObjects = 64

// Index returns the position in the wait set of the event that satisfied the wait.
func (me Result) Index() (int, bool) {
	if me >= WaitObject0 && me < WaitObject0+MaxWaitObjects {
		return int(me - WaitObject0), true
	}
	return -1, false
}

func (me Result) String() string {
	if i, ok := me.Index(); ok {
		return fmt.Sprintf("signaled(%d)", i)
	}
	switch me {
	case WaitAbandoned:
		return "abandoned"
	case WaitTimeout:
		return "timeout"
	case WaitFailed:
		return "failed"
	}
	return fmt.Sprintf("Result(%#x)", int32(me))
}

// Short form used for metric labels.
func (me Result) label() string {
	if _, ok := me.Index(); ok {
		return "signaled"
	}
	return me.String()
}
