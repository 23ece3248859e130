package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Whisper transcribes audio with the OpenAI transcription endpoint.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
}

func NewWhisper(apiKey, model, language string) *Whisper {
	return NewWhisperWithConfig(openai.DefaultConfig(apiKey), model, language)
}

func NewWhisperWithConfig(config openai.ClientConfig, model, language string) *Whisper {
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{client: openai.NewClientWithConfig(config), model: model, language: language}
}

func (w *Whisper) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("whisper: %w: empty payload", ErrMalformedAudio)
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(audio),
		Language: w.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		if isBadRequest(err) {
			return "", fmt.Errorf("whisper: %w: %v", ErrMalformedAudio, err)
		}
		return "", fmt.Errorf("whisper transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// OpenAISpeech synthesizes interviewer replies with the OpenAI speech endpoint.
type OpenAISpeech struct {
	client *openai.Client
	model  string
	voice  string
	format openai.SpeechResponseFormat
}

func NewOpenAISpeech(apiKey, model, voice string) *OpenAISpeech {
	return NewOpenAISpeechWithConfig(openai.DefaultConfig(apiKey), model, voice)
}

func NewOpenAISpeechWithConfig(config openai.ClientConfig, model, voice string) *OpenAISpeech {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAISpeech{
		client: openai.NewClientWithConfig(config),
		model:  model,
		voice:  voice,
		format: openai.SpeechResponseFormatMp3,
	}
}

func (s *OpenAISpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("openai speech: empty text")
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: s.format,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer func() { _ = resp.Close() }()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("openai speech: empty audio")
	}
	return audio, nil
}

func isBadRequest(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusBadRequest
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusBadRequest
	}
	return false
}
