// Package confirm asks a vision language model whether a gated frame really
// shows a person. The model's verdict is authoritative: the fast gate only
// decides which frames are worth this call.
package confirm

import "context"

// Result is the model's verdict on a frame. PersonPresent is nil when every
// attempt failed or the reply could not be parsed, which callers treat as
// unknown rather than absence.
type Result struct {
	PersonPresent *bool  `json:"person_present"`
	Description   string `json:"description"`
}

// Confirmed reports a definite person verdict.
func (r *Result) Confirmed() bool {
	return r != nil && r.PersonPresent != nil && *r.PersonPresent
}

// Unknown reports that no verdict was obtained.
func (r *Result) Unknown() bool {
	return r == nil || r.PersonPresent == nil
}

// Analyzer confirms person presence in a JPEG frame.
type Analyzer interface {
	Analyze(ctx context.Context, frame []byte) (*Result, error)
	Healthy(ctx context.Context) bool
}
