// Package apierr attaches HTTP status and a stable machine code to errors.
package apierr

import (
	"errors"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	}
	return http.StatusText(e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }

// Rule maps every error matching Target under errors.Is to Status and Code.
type Rule struct {
	Target error
	Status int
	Code   string
}

// Rules classify in order; the first match wins.
type Rules []Rule

// Classify returns err itself when it already is an *Error, else the first
// matching rule, else a 500 internal_error.
func (rs Rules) Classify(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	for _, r := range rs {
		if errors.Is(err, r.Target) {
			return New(r.Status, r.Code, err)
		}
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
