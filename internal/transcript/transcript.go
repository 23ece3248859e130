package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type Speaker string

const (
	Interviewer Speaker = "interviewer"
	Candidate   Speaker = "candidate"
)

func (s Speaker) Valid() bool {
	return s == Interviewer || s == Candidate
}

// Entry is one utterance in an interview. Entries are never edited once appended.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
}

func (e Entry) FormatMarkdown() string {
	ts := e.Timestamp.Format("15:04:05")
	return fmt.Sprintf("**[%s] %s:** %s", ts, speakerLabel(e.Speaker), strings.TrimSpace(e.Text))
}

func speakerLabel(s Speaker) string {
	switch s {
	case Interviewer:
		return "Interviewer"
	case Candidate:
		return "Candidate"
	default:
		return string(s)
	}
}

// Log is an append-only, ordered transcript.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewLog(entries ...Entry) *Log {
	return &Log{entries: append([]Entry(nil), entries...)}
}

// Append adds an entry stamped at `at`. Timestamps earlier than the last
// entry are clamped so the log stays non-decreasing.
func (l *Log) Append(speaker Speaker, text string, at time.Time) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	at = at.UTC()
	if n := len(l.entries); n > 0 && at.Before(l.entries[n-1].Timestamp) {
		at = l.entries[n-1].Timestamp
	}

	entry := Entry{Timestamp: at, Speaker: speaker, Text: strings.TrimSpace(text)}
	l.entries = append(l.entries, entry)
	return entry
}

func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Window returns at most the last n entries. n <= 0 returns everything.
func (l *Log) Window(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n >= len(l.entries) {
		return append([]Entry(nil), l.entries...)
	}
	return append([]Entry(nil), l.entries[len(l.entries)-n:]...)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// First returns the earliest entry by the given speaker.
func (l *Log) First(speaker Speaker) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e.Speaker == speaker {
			return e, true
		}
	}
	return Entry{}, false
}
