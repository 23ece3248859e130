package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Deepgram transcribes one candidate utterance with the prerecorded API.
type Deepgram struct {
	client   *api.Client
	model    string
	language string
}

func NewDeepgram(apiKey, model, language string) *Deepgram {
	return newDeepgram(apiKey, model, language, &interfaces.ClientOptions{})
}

func newDeepgram(apiKey, model, language string, opts *interfaces.ClientOptions) *Deepgram {
	if model == "" {
		model = "nova-2"
	}
	if language == "" {
		language = "en"
	}
	c := client.NewREST(apiKey, opts)
	return &Deepgram{client: api.New(c), model: model, language: language}
}

func (d *Deepgram) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("deepgram: %w: empty payload", ErrMalformedAudio)
	}

	res, err := d.client.FromStream(ctx, bytes.NewReader(audio), &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    d.language,
		Punctuate:   true,
		SmartFormat: true,
	})
	if err != nil {
		if isDeepgramBadRequest(err) {
			return "", fmt.Errorf("deepgram transcribe: %w: %w", ErrMalformedAudio, err)
		}
		return "", fmt.Errorf("deepgram transcribe: %w", err)
	}
	if res == nil || res.Results == nil {
		return "", nil
	}

	var parts []string
	for _, ch := range res.Results.Channels {
		if len(ch.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(ch.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// isDeepgramBadRequest reports a 400 from the listen endpoint. The SDK returns
// a StatusError when the body is a Deepgram error document and a plain
// "400 Bad Request: ..." error otherwise.
func isDeepgramBadRequest(err error) bool {
	var statusErr *interfaces.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Resp != nil && statusErr.Resp.StatusCode == http.StatusBadRequest
	}
	return strings.HasPrefix(err.Error(), strconv.Itoa(http.StatusBadRequest)+" ")
}
