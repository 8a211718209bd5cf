package common

import "errors"

// ErrorKind classifies why a module rejected an operation.
type ErrorKind uint8

const (
	KindValidation ErrorKind = iota + 1
	KindAuthorization
	KindState
	KindArithmetic
	KindInsufficiency
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindArithmetic:
		return "arithmetic"
	case KindInsufficiency:
		return "insufficiency"
	default:
		return "internal"
	}
}

// Error is a rejected operation carrying a stable machine-readable code.
// Module sentinels are *Error values and are matched with errors.Is.
type Error struct {
	Code string
	Kind ErrorKind
	Msg  string
}

func NewError(kind ErrorKind, code, msg string) *Error {
	return &Error{Code: code, Kind: kind, Msg: msg}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Msg
}

// AsError returns the module error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) && target != nil {
		return target, true
	}
	return nil, false
}

// KindOf reports the classification of err. Errors that did not originate
// from a module are reported as internal (zero kind).
func KindOf(err error) ErrorKind {
	if modErr, ok := AsError(err); ok {
		return modErr.Kind
	}
	return 0
}
