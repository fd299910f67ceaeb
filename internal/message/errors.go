package message

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. The transport maps kinds to status codes.
type Kind string

const (
	// KindValidation marks a malformed request body.
	KindValidation Kind = "validation"

	// KindNotFound marks an unknown style id.
	KindNotFound Kind = "not_found"

	// KindDecode marks a prompt_audio payload that is not valid base64 or not a readable WAV.
	KindDecode Kind = "decode"

	// KindInference marks a failure raised by the synthesis model.
	KindInference Kind = "inference"

	// KindInternal marks encoding failures and anything unexpected.
	KindInternal Kind = "internal"
)

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Errorf formats a new error tagged with kind.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost tagged error in err's chain,
// or KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
