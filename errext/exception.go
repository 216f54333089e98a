// Package errext contains extensions for normal Go errors that are used in marionette.
package errext

// Exception represents errors raised by a remote script that carry the
// stack trace that led to them.
type Exception interface {
	error
	StackTrace() string
}
