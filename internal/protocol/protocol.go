package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sjawhar/interview-agent/internal/transcript"
)

// Message types on the wire.
const (
	TypeText       = "text"
	TypeAudio      = "audio"
	TypeControl    = "control"
	TypeTranscript = "transcript"
	TypeStatus     = "status"
	TypeError      = "error"
)

const CommandEnd = "end"

var ErrBadMessage = errors.New("bad message")

type ErrorCode string

const (
	CodeNotFound        ErrorCode = "not_found"
	CodeInvalidState    ErrorCode = "invalid_state"
	CodeBusy            ErrorCode = "busy"
	CodeBadRequest      ErrorCode = "bad_request"
	CodeUpstreamFailure ErrorCode = "upstream_failure"
	CodeOwnedElsewhere  ErrorCode = "owned_elsewhere"
	CodeInternal        ErrorCode = "internal"
)

// Inbound is a decoded client message: TextInput, AudioInput or ControlInput.
type Inbound interface {
	inbound()
}

type TextInput struct {
	Text string
}

type AudioInput struct {
	Audio []byte
}

type ControlInput struct {
	Command string
}

func (TextInput) inbound()    {}
func (AudioInput) inbound()   {}
func (ControlInput) inbound() {}

// Outbound is a server message: Text, Audio, TranscriptUpdate, Status or Error.
type Outbound interface {
	outbound()
}

type Text struct {
	Text string
}

type Audio struct {
	Audio    []byte
	Sentence string
}

type TranscriptUpdate struct {
	Entry transcript.Entry
}

type Status struct {
	Message        string
	State          string
	TranscriptPath string
}

type Error struct {
	Code    ErrorCode
	Message string
}

func (Text) outbound()             {}
func (Audio) outbound()            {}
func (TranscriptUpdate) outbound() {}
func (Status) outbound()           {}
func (Error) outbound()            {}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses one client frame. Every failure wraps ErrBadMessage.
func Decode(raw []byte) (Inbound, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	var data string
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: data must be a string", ErrBadMessage)
		}
	}

	switch frame.Type {
	case TypeText:
		text := strings.TrimSpace(data)
		if text == "" {
			return nil, fmt.Errorf("%w: empty text", ErrBadMessage)
		}
		return TextInput{Text: text}, nil
	case TypeAudio:
		if data == "" {
			return nil, fmt.Errorf("%w: empty audio", ErrBadMessage)
		}
		audio, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 audio", ErrBadMessage)
		}
		return AudioInput{Audio: audio}, nil
	case TypeControl:
		cmd := strings.ToLower(strings.TrimSpace(data))
		if cmd != CommandEnd {
			return nil, fmt.Errorf("%w: unknown control command %q", ErrBadMessage, data)
		}
		return ControlInput{Command: cmd}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrBadMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrBadMessage, frame.Type)
	}
}

type outboundFrame struct {
	Type           string    `json:"type"`
	Data           any       `json:"data"`
	Sentence       string    `json:"sentence,omitempty"`
	Code           ErrorCode `json:"code,omitempty"`
	State          string    `json:"state,omitempty"`
	TranscriptPath string    `json:"transcript_path,omitempty"`
}

// Encode serializes a server message as {"type": ..., "data": ...}.
func Encode(msg Outbound) ([]byte, error) {
	var frame outboundFrame
	switch m := msg.(type) {
	case Text:
		frame = outboundFrame{Type: TypeText, Data: m.Text}
	case Audio:
		frame = outboundFrame{Type: TypeAudio, Data: base64.StdEncoding.EncodeToString(m.Audio), Sentence: m.Sentence}
	case TranscriptUpdate:
		frame = outboundFrame{Type: TypeTranscript, Data: m.Entry}
	case Status:
		frame = outboundFrame{Type: TypeStatus, Data: m.Message, State: m.State, TranscriptPath: m.TranscriptPath}
	case Error:
		frame = outboundFrame{Type: TypeError, Data: m.Message, Code: m.Code}
	default:
		return nil, fmt.Errorf("encode: unsupported outbound message %T", msg)
	}
	return json.Marshal(frame)
}
