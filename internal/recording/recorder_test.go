package recording

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestRecorderProducesWav(t *testing.T) {
	dir := t.TempDir()
	recorder := NewRecorder(dir, FormatPCM16, 16000)

	if err := recorder.Start("I1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := recorder.Write("I1", []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := recorder.Write("I1", []byte{5, 6}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	path, err := recorder.Close("I1")
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if path != filepath.Join(dir, "I1.wav") {
		t.Fatalf("unexpected path %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav failed: %v", err)
	}
	if len(data) != 44+6 {
		t.Fatalf("expected 50 bytes, got %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:16]) != "WAVEfmt " || string(data[36:40]) != "data" {
		t.Fatalf("unexpected wav header %q", data[:44])
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 6 {
		t.Fatalf("expected data size 6, got %d", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "I1.pcm")); !os.IsNotExist(err) {
		t.Fatalf("expected raw pcm cleanup, stat err=%v", err)
	}
}

func TestRecorderEmptySessionYieldsNoFile(t *testing.T) {
	dir := t.TempDir()
	recorder := NewRecorder(dir, FormatPCM16, 0)

	if err := recorder.Start("I1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	path, err := recorder.Close("I1")
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if path != "" {
		t.Fatalf("expected empty path, got %q", path)
	}

	path, err = recorder.Close("never-started")
	if err != nil || path != "" {
		t.Fatalf("expected no-op close, got %q, %v", path, err)
	}
	if err := recorder.Write("never-started", []byte{1}); err != nil {
		t.Fatalf("Write to unknown session should be ignored, got %v", err)
	}
}

func TestRecorderRawFormatAndConcurrentSessions(t *testing.T) {
	dir := t.TempDir()
	recorder := NewRecorder(dir, FormatRaw, 16000)

	ids := []string{"A", "B", "C"}
	for _, id := range ids {
		if err := recorder.Start(id); err != nil {
			t.Fatalf("Start %s failed: %v", id, err)
		}
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = recorder.Write(id, []byte(id))
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		path, err := recorder.Close(id)
		if err != nil {
			t.Fatalf("Close %s failed: %v", id, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s failed: %v", path, err)
		}
		if len(data) != 10 {
			t.Fatalf("expected 10 bytes for %s, got %d", id, len(data))
		}
		for _, b := range data {
			if string(b) != id {
				t.Fatalf("recording %s contains bytes from another session", id)
			}
		}
	}
}

func TestRecorderCustomEncode(t *testing.T) {
	dir := t.TempDir()
	recorder := NewRecorder(dir, FormatPCM16, 16000)
	recorder.encode = func(rawPath, interviewID string) (string, error) {
		out := filepath.Join(dir, interviewID+".mp3")
		return out, os.WriteFile(out, []byte("ok"), 0o644)
	}

	if err := recorder.Start("I2"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_ = recorder.Write("I2", []byte{1, 2})

	path, err := recorder.Close("I2")
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if filepath.Ext(path) != ".mp3" {
		t.Fatalf("expected custom encoder output, got %q", path)
	}
}
