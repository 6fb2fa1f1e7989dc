//go:build windows

package native

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/dannyzb/winevent"
)

// Event is an unnamed Windows event object.
type Event struct {
	handle windows.Handle
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func New(manualReset, initialState bool) (*Event, error) {
	h, err := windows.CreateEvent(nil, boolToUint32(manualReset), boolToUint32(initialState), nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating event")
	}
	return &Event{handle: h}, nil
}

func (me *Event) Set() error {
	return errors.Wrap(windows.SetEvent(me.handle), "setting event")
}

func (me *Event) Reset() error {
	return errors.Wrap(windows.ResetEvent(me.handle), "resetting event")
}

func (me *Event) Pulse() error {
	return errors.Wrap(windows.PulseEvent(me.handle), "pulsing event")
}

func (me *Event) Close() error {
	return errors.Wrap(windows.CloseHandle(me.handle), "closing event")
}

// Wait waits on the events with WaitForMultipleObjects. Timeouts are rounded up to whole
// milliseconds.
func Wait(timeout time.Duration, waitAll bool, events ...*Event) (winevent.Result, error) {
	if len(events) > winevent.MaxWaitObjects {
		return winevent.WaitFailed, errors.Wrapf(winevent.ErrTooManyEvents, "%d events", len(events))
	}
	handles := make([]windows.Handle, 0, len(events))
	for _, e := range events {
		handles = append(handles, e.handle)
	}
	ev, err := windows.WaitForMultipleObjects(handles, waitAll, milliseconds(timeout))
	res := resultOf(ev, len(events))
	if res == winevent.WaitFailed {
		if err == nil {
			err = errors.Errorf("unexpected wait result %#x", ev)
		}
		return res, errors.Wrap(err, "waiting for events")
	}
	return res, nil
}
