// Package winevent provides Win32-style event objects and a wait on many of them at once, the
// equivalent of WaitForMultipleObjects, built on mutexes and channels.
//
// A wait call locks every event in its wait set, checks their state, and if the wait isn't
// already satisfied links itself into each event's waiter list and sleeps on a channel of its
// own. Set walks the event's list and hands the signal to the blocked calls in the order they
// started waiting.
package winevent
