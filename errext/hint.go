package errext

import "errors"

// HasHint is an error carrying a suggestion for the user, such as how to
// fix a bad flag or what else could be listening on an address.
type HasHint interface {
	error
	Hint() string
}

// WithHint attaches hint to err. A nil err stays nil. When err already
// carries a hint, the result reads "hint (previous hint)".
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return hinted{err: err, hint: hint}
}

type hinted struct {
	err  error
	hint string
}

var _ HasHint = hinted{}

func (h hinted) Error() string { return h.err.Error() }
func (h hinted) Unwrap() error { return h.err }

func (h hinted) Hint() string {
	var prev HasHint
	if !errors.As(h.err, &prev) {
		return h.hint
	}
	return h.hint + " (" + prev.Hint() + ")"
}
