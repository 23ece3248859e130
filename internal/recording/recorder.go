package recording

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	FormatPCM16 = "pcm16"
	FormatRaw   = "raw"

	defaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
)

// Recorder captures candidate audio per interview. Sessions are independent
// and may be written concurrently.
type Recorder struct {
	dir        string
	format     string
	sampleRate int

	mu       sync.Mutex
	sessions map[string]*session

	encode func(rawPath, interviewID string) (string, error)
}

type session struct {
	mu      sync.Mutex
	rawPath string
	file    *os.File
	bytes   int
}

func NewRecorder(dir, format string, sampleRate int) *Recorder {
	if dir == "" {
		dir = filepath.Join("data", "recordings")
	}
	if format != FormatRaw {
		format = FormatPCM16
	}
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	r := &Recorder{dir: dir, format: format, sampleRate: sampleRate, sessions: make(map[string]*session)}
	r.encode = r.defaultEncode
	return r
}

// Start opens the capture file for an interview. Starting an already open
// interview is a no-op so resumed sessions keep appending.
func (r *Recorder) Start(interviewID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[interviewID]; ok {
		return nil
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create recordings directory: %w", err)
	}

	rawPath := filepath.Join(r.dir, interviewID+".pcm")
	if r.format == FormatRaw {
		rawPath = filepath.Join(r.dir, interviewID+".audio")
	}
	f, err := os.OpenFile(rawPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open recording file: %w", err)
	}

	r.sessions[interviewID] = &session{rawPath: rawPath, file: f}
	return nil
}

// Write appends one utterance. Unknown interviews are ignored.
func (r *Recorder) Write(interviewID string, audio []byte) error {
	r.mu.Lock()
	s := r.sessions[interviewID]
	r.mu.Unlock()
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	n, err := s.file.Write(audio)
	s.bytes += n
	if err != nil {
		return fmt.Errorf("write recording bytes: %w", err)
	}
	return nil
}

// Close finalizes the capture and returns the playable file path. An
// interview that never received audio yields an empty path.
func (r *Recorder) Close(interviewID string) (string, error) {
	r.mu.Lock()
	s := r.sessions[interviewID]
	delete(r.sessions, interviewID)
	r.mu.Unlock()
	if s == nil {
		return "", nil
	}

	s.mu.Lock()
	f, rawPath, written := s.file, s.rawPath, s.bytes
	s.file = nil
	s.mu.Unlock()

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close recording file: %w", err)
	}
	if written == 0 {
		_ = os.Remove(rawPath)
		return "", nil
	}
	if r.format == FormatRaw {
		return rawPath, nil
	}

	path, err := r.encode(rawPath, interviewID)
	if err != nil {
		return "", err
	}
	_ = os.Remove(rawPath)
	return path, nil
}

func (r *Recorder) defaultEncode(rawPath, interviewID string) (string, error) {
	wavPath := filepath.Join(r.dir, interviewID+".wav")
	if err := pcmToWav(rawPath, wavPath, r.sampleRate); err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}
	return wavPath, nil
}

func pcmToWav(rawPath, wavPath string, sampleRate int) error {
	pcmData, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw pcm data: %w", err)
	}

	out, err := os.OpenFile(wavPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open wav output: %w", err)
	}
	defer out.Close()

	if _, err := out.Write(wavHeader(len(pcmData), sampleRate, pcmChannels, pcmBitDepth)); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := out.Write(pcmData); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}

	return nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) []byte {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitDepth))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	return buf.Bytes()
}
