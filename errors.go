package winevent

import "github.com/pkg/errors"

var (
	// A wait set named the same event more than once.
	ErrDuplicateEvent = errors.New("duplicate event in wait set")
	// A wait set had more than MaxWaitObjects events.
	ErrTooManyEvents = errors.New("too many events in wait set")
)
