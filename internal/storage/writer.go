package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sjawhar/interview-agent/internal/transcript"
)

// FileWriter writes one JSON snapshot per interview.
type FileWriter struct {
	dir string
	mu  sync.Mutex
}

func NewFileWriter(dir string) *FileWriter {
	if dir == "" {
		dir = filepath.Join("data", "transcripts")
	}
	return &FileWriter{dir: dir}
}

func (w *FileWriter) Path(interviewID string) string {
	return filepath.Join(w.dir, interviewID+"_transcript.json")
}

// Write replaces the snapshot atomically via temp file and rename.
func (w *FileWriter) Write(rec transcript.Record) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript %s: %w", rec.InterviewID, err)
	}

	path := w.Path(rec.InterviewID)
	tmp, err := os.CreateTemp(w.dir, rec.InterviewID+"_*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename %s: %w", path, err)
	}

	return path, nil
}

func (w *FileWriter) Read(interviewID string) (transcript.Record, error) {
	data, err := os.ReadFile(w.Path(interviewID))
	if err != nil {
		return transcript.Record{}, fmt.Errorf("read transcript %s: %w", interviewID, err)
	}

	var rec transcript.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return transcript.Record{}, fmt.Errorf("decode transcript %s: %w", interviewID, err)
	}
	return rec, nil
}
