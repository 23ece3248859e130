package session

import (
	"context"
	"time"

	"github.com/sjawhar/interview-agent/internal/transcript"
)

// Archive is the durable transcript sink. Persist must be idempotent per
// interview id.
type Archive interface {
	Persist(ctx context.Context, rec transcript.Record) (string, error)
	Lookup(ctx context.Context, interviewID string) (transcript.Record, string, error)
}

// Leaser grants this instance exclusive ownership of an interview id.
type Leaser interface {
	Acquire(ctx context.Context, interviewID string) error
	Refresh(ctx context.Context, interviewID string) error
	Release(ctx context.Context, interviewID string) error
}

type Recorder interface {
	Start(interviewID string) error
	Write(interviewID string, audio []byte) error
	Close(interviewID string) (string, error)
}

// Observer receives lifecycle events for metrics.
type Observer interface {
	SessionStarted()
	SessionEnded(reason string)
	TurnCompleted(elapsed time.Duration, fallback bool)
	UpstreamFailure(stage Stage)
	PersistFailed(alarm bool)
}

// PersistHook runs in the background after a record is durably stored.
type PersistHook func(ctx context.Context, rec transcript.Record, path string)

type nopObserver struct{}

func (nopObserver) SessionStarted()                   {}
func (nopObserver) SessionEnded(string)               {}
func (nopObserver) TurnCompleted(time.Duration, bool) {}
func (nopObserver) UpstreamFailure(Stage)             {}
func (nopObserver) PersistFailed(bool)                {}
