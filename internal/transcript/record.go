package transcript

import (
	"fmt"
	"strings"
	"time"
)

// Record is the persisted snapshot of a finished interview.
type Record struct {
	InterviewID    string    `json:"interview_id"`
	CandidateID    string    `json:"candidate_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	JobDescription string    `json:"job_description"`
	Transcript     []Entry   `json:"transcript"`
	RecordingPath  string    `json:"recording_path,omitempty"`
	EndReason      string    `json:"end_reason,omitempty"`
}

func (r Record) Duration() time.Duration {
	if r.EndedAt.IsZero() || r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

func (r Record) FormatMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Interview %s\n\n", r.InterviewID)
	if r.CandidateID != "" {
		fmt.Fprintf(&b, "- Candidate: %s\n", r.CandidateID)
	}
	fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n\n", r.Duration().Round(time.Second))

	for _, e := range r.Transcript {
		b.WriteString(e.FormatMarkdown())
		b.WriteString("\n\n")
	}
	return b.String()
}

// PlainText renders the transcript as speaker-prefixed lines.
func (r Record) PlainText() string {
	var b strings.Builder
	for _, e := range r.Transcript {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		b.WriteString(speakerLabel(e.Speaker))
		b.WriteString(": ")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}
