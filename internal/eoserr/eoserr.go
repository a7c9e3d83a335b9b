// Package eoserr defines the error-kind taxonomy used across EOS (spec
// section 7), so the control RPC, the 9P overlay, and the tick loop can
// all branch on *kind* instead of matching error strings.
package eoserr

import "fmt"

type Kind string

const (
	IdAlreadyExists Kind = "IdAlreadyExists"
	ScriptCompile   Kind = "ScriptCompile"
	ScriptRuntime   Kind = "ScriptRuntime"
	InvalidInput    Kind = "InvalidInput"
	NotFound        Kind = "NotFound"
	Transport       Kind = "Transport"
	Fatal           Kind = "Fatal"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFoundf(format string, a ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, a...))
}

func InvalidInputf(format string, a ...interface{}) *Error {
	return New(InvalidInput, fmt.Sprintf(format, a...))
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to Fatal for unrecognized errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	for {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
		if err == nil {
			break
		}
	}
	if e != nil {
		return e.Kind
	}
	return Fatal
}
