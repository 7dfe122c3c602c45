package execevent

import "strings"

// Failure is an error reported by the build tool: a message, an optional
// cause chain and the tool's stack trace text.
type Failure struct {
	Message string
	Cause   error
	Stack   string
}

func (f *Failure) Error() string {
	if f.Cause != nil && f.Message == "" {
		return f.Cause.Error()
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// StackOf returns the stack text of the first Failure in err's chain.
func StackOf(err error) string {
	for err != nil {
		if f, ok := err.(*Failure); ok && f.Stack != "" {
			return strings.TrimRight(f.Stack, "\n")
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
