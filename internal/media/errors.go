package media

import (
	"errors"
	"fmt"
)

// Failure kinds of a generation pipeline. Test with errors.Is.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrDownload       = errors.New("download failed")
	ErrDecode         = errors.New("decode failed")
	ErrEncode         = errors.New("encode failed")
	ErrUpload         = errors.New("upload failed")
)

// StageError records which pipeline step failed for which object.
type StageError struct {
	Kind error
	Op   string
	Key  string
	Err  error
}

func (e *StageError) Error() string {
	msg := e.Op
	if e.Key != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Key)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Fail wraps err as a StageError of the given kind.
func Fail(kind error, op, key string, err error) error {
	return &StageError{Kind: kind, Op: op, Key: key, Err: err}
}

// KindOf reports the failure kind err already carries, or fallback.
func KindOf(err, fallback error) error {
	for _, kind := range []error{ErrInvalidRequest, ErrDownload, ErrDecode, ErrEncode, ErrUpload} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return fallback
}
