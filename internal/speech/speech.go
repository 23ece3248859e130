package speech

import (
	"context"
	"errors"
)

// ErrMalformedAudio means the upstream rejected the audio itself; retrying
// the same payload cannot succeed.
var ErrMalformedAudio = errors.New("malformed audio")

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
