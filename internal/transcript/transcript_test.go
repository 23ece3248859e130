package transcript

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogAppendClampsTimestamps(t *testing.T) {
	log := NewLog()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	log.Append(Interviewer, "Welcome.", base.Add(2*time.Second))
	second := log.Append(Candidate, "Thanks.", base)

	if !second.Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("expected clamped timestamp %v, got %v", base.Add(2*time.Second), second.Timestamp)
	}

	entries := log.Entries()
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			t.Fatalf("timestamps decreased at %d: %v < %v", i, entries[i].Timestamp, entries[i-1].Timestamp)
		}
	}
}

func TestLogAppendConcurrentNeverShrinks(t *testing.T) {
	log := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(Candidate, "answer", time.Now())
		}()
	}
	wg.Wait()

	if log.Len() != 50 {
		t.Fatalf("expected 50 entries, got %d", log.Len())
	}
	entries := log.Entries()
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			t.Fatalf("timestamps decreased at %d", i)
		}
	}
}

func TestLogWindow(t *testing.T) {
	log := NewLog()
	now := time.Now()
	for i := 0; i < 5; i++ {
		log.Append(Candidate, strings.Repeat("x", i+1), now)
	}

	window := log.Window(2)
	if len(window) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(window))
	}
	if window[0].Text != "xxxx" || window[1].Text != "xxxxx" {
		t.Fatalf("unexpected window: %#v", window)
	}
	if got := len(log.Window(0)); got != 5 {
		t.Fatalf("expected full log for n=0, got %d", got)
	}
	if log.Len() != 5 {
		t.Fatalf("window must not truncate the log, got %d entries", log.Len())
	}
}

func TestLogEntriesReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Append(Interviewer, "Hello.", time.Now())

	entries := log.Entries()
	entries[0].Text = "mutated"

	if got := log.Entries()[0].Text; got != "Hello." {
		t.Fatalf("expected stored entry to be unchanged, got %q", got)
	}
}

func TestLogFirst(t *testing.T) {
	log := NewLog()
	if _, ok := log.First(Interviewer); ok {
		t.Fatal("expected no interviewer entry in empty log")
	}
	log.Append(Interviewer, "Greeting.", time.Now())
	log.Append(Candidate, "Hi.", time.Now())
	log.Append(Interviewer, "Question.", time.Now())

	first, ok := log.First(Interviewer)
	if !ok || first.Text != "Greeting." {
		t.Fatalf("expected greeting, got %#v", first)
	}
}

func TestEntryJSONShape(t *testing.T) {
	entry := Entry{
		Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Speaker:   Candidate,
		Text:      "I have 5 years of Python experience",
	}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"timestamp":"2026-03-02T09:00:00Z","speaker":"candidate","text":"I have 5 years of Python experience"}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}

func TestEntryFormatMarkdown(t *testing.T) {
	entry := Entry{
		Timestamp: time.Date(2026, 2, 26, 10, 32, 15, 0, time.UTC),
		Speaker:   Interviewer,
		Text:      " Tell me about yourself. ",
	}
	want := "**[10:32:15] Interviewer:** Tell me about yourself."
	if got := entry.FormatMarkdown(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRecordDurationAndText(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rec := Record{
		InterviewID: "I1",
		StartedAt:   start,
		EndedAt:     start.Add(90 * time.Second),
		Transcript: []Entry{
			{Timestamp: start, Speaker: Interviewer, Text: "Hello."},
			{Timestamp: start.Add(time.Second), Speaker: Candidate, Text: "Hi."},
		},
	}

	if rec.Duration() != 90*time.Second {
		t.Fatalf("expected 90s duration, got %v", rec.Duration())
	}
	if got := rec.PlainText(); got != "Interviewer: Hello.\nCandidate: Hi.\n" {
		t.Fatalf("unexpected plain text %q", got)
	}
	if md := rec.FormatMarkdown(); !strings.Contains(md, "# Interview I1") || !strings.Contains(md, "Candidate:** Hi.") {
		t.Fatalf("unexpected markdown %q", md)
	}

	rec.EndedAt = time.Time{}
	if rec.Duration() != 0 {
		t.Fatalf("expected zero duration for open record, got %v", rec.Duration())
	}
}
