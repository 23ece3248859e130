package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("interview session not found")
	ErrInvalidState   = errors.New("interview session is not accepting turns")
	ErrBusy           = errors.New("interview session is busy")
	ErrOwnedElsewhere = errors.New("interview session is owned by another instance")
	ErrPersistence    = errors.New("persist transcript")
)

type Stage string

const (
	StageSTT Stage = "stt"
	StageLLM Stage = "llm"
	StageTTS Stage = "tts"
)

// UpstreamError wraps an adapter failure. Fatal errors fail the session;
// transient ones have already been retried when they surface.
type UpstreamError struct {
	Stage Stage
	Fatal bool
	Err   error
}

func (e *UpstreamError) Error() string {
	kind := "transient"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("%s %s failure: %v", e.Stage, kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func IsFatal(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream) && upstream.Fatal
}
