package winevent

import (
	"encoding/json"
	"reflect"
	"strconv"
	"sync/atomic"
)

// Count is a counter that's safe for concurrent use. It marshals to JSON as a bare number. A plain
// int64 keeps snapshots copyable.
type Count struct {
	n int64
}

func (me *Count) Add(n int64) {
	atomic.AddInt64(&me.n, n)
}

func (me *Count) Int64() int64 {
	return atomic.LoadInt64(&me.n)
}

func (me *Count) String() string {
	return strconv.FormatInt(me.Int64(), 10)
}

func (me *Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(me.Int64())
}

// Stats counts the wait calls that returned through a Waiter. Calls that panic aren't counted.
// Every field must be a Count. Marshal a *Stats to get the counts as JSON numbers.
type Stats struct {
	// Calls, including rejected ones.
	Waits Count `json:"waits"`
	// Satisfied without blocking.
	FastPath Count `json:"fast_path"`
	// Had to block.
	Blocked Count `json:"blocked"`

	Signaled Count `json:"signaled"`
	Timeouts Count `json:"timeouts"`
	Failures Count `json:"failures"`
}

func (me *Stats) record(res Result) {
	switch res {
	case WaitTimeout:
		me.Timeouts.Add(1)
	case WaitFailed:
		me.Failures.Add(1)
	default:
		me.Signaled.Add(1)
	}
}

// Copies each counter's current value. The counters are read one at a time, so the copy isn't
// an atomic view of all of them.
func (me *Stats) snapshot() (ret Stats) {
	src := reflect.ValueOf(me).Elem()
	dst := reflect.ValueOf(&ret).Elem()
	for i := range src.NumField() {
		from := src.Field(i).Addr().Interface().(*Count)
		dst.Field(i).Addr().Interface().(*Count).Add(from.Int64())
	}
	return
}
