package synth

import "errors"

var (
	errNoJSON  = errors.New("reply contains no JSON object")
	errBadJSON = errors.New("reply JSON is malformed")
)

type schemaError struct{ err error }

func (e *schemaError) Error() string { return "reply does not match draft shape: " + e.err.Error() }
func (e *schemaError) Unwrap() error { return e.err }
