package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by the stage that raised them.
type ErrorKind string

const (
	KindDecode        ErrorKind = "decode"
	KindModelLoad     ErrorKind = "model_load"
	KindFileNotFound  ErrorKind = "file_not_found"
	KindTranscription ErrorKind = "transcription"
	KindIO            ErrorKind = "io"
	KindValidation    ErrorKind = "validation"
)

// Error is a stage-aware failure with optional captured diagnostics.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Path    string    `json:"path,omitempty"`
	Message string    `json:"message"`
	Stderr  string    `json:"stderr,omitempty"`
	Err     error     `json:"-"`
}

// Error formats failures for logs and UI.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Err != nil && e.Stderr == "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether any error in err's chain is a *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Kind == kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
