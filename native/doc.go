// Package native wraps the operating system's own event objects behind the same semantics as
// package winevent, so the two can be checked against each other. Events are only available on
// Windows.
package native
