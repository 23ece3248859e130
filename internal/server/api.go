package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sjawhar/interview-agent/internal/candidates"
	"github.com/sjawhar/interview-agent/internal/protocol"
	"github.com/sjawhar/interview-agent/internal/session"
	"github.com/sjawhar/interview-agent/internal/storage"
	"github.com/sjawhar/interview-agent/internal/transcript"
)

var interviewIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const maxBodyBytes = 1 << 20

type candidateAuthRequest struct {
	Name string `json:"name"`
}

type startRequest struct {
	CandidateID    string `json:"candidate_id"`
	JobDescription string `json:"job_description"`
}

type startResponse struct {
	InterviewID   string             `json:"interview_id"`
	Status        string             `json:"status"`
	Greeting      string             `json:"greeting"`
	GreetingAudio string             `json:"greeting_audio,omitempty"`
	Resumed       bool               `json:"resumed"`
	Transcript    []transcript.Entry `json:"transcript"`
}

type endResponse struct {
	InterviewID     string             `json:"interview_id"`
	Status          string             `json:"status"`
	TranscriptPath  string             `json:"transcript_path"`
	Duration        string             `json:"duration"`
	DurationSeconds float64            `json:"duration_seconds"`
	Transcript      []transcript.Entry `json:"transcript"`
}

type statusResponse struct {
	InterviewID string    `json:"interview_id"`
	Status      string    `json:"status"`
	Live        bool      `json:"live"`
	CandidateID string    `json:"candidate_id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitzero"`
	EndReason   string    `json:"end_reason,omitempty"`
	Connected   bool      `json:"connected"`
	Entries     int       `json:"entries"`
}

func (g *gateway) registerAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/interviews/candidate-auth", g.candidateAuth)
		r.Post("/interviews/{id}/start", g.startInterview)
		r.Post("/interviews/{id}/end", g.endInterview)
		r.Get("/interviews/{id}/status", g.interviewStatus)
		r.Get("/transcripts", g.listTranscripts)
		r.Get("/transcripts/{id}", g.getTranscript)
		r.Get("/dates", g.listDates)
	})
}

func (g *gateway) candidateAuth(w http.ResponseWriter, r *http.Request) {
	if g.resolver == nil {
		writeJSONError(w, http.StatusServiceUnavailable, protocol.CodeInternal, "candidate lookup is not configured")
		return
	}
	var req candidateAuthRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, protocol.CodeBadRequest, "name is required")
		return
	}

	match, err := g.resolver.Resolve(r.Context(), req.Name)
	switch {
	case errors.Is(err, candidates.ErrNoCandidate):
		writeJSONError(w, http.StatusNotFound, protocol.CodeNotFound, "No scheduled interview found for this name")
		return
	case errors.Is(err, candidates.ErrNoInterview):
		writeJSONError(w, http.StatusNotFound, protocol.CodeNotFound, "No active interview found for this candidate")
		return
	case err != nil:
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (g *gateway) startInterview(w http.ResponseWriter, r *http.Request) {
	id, ok := interviewID(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, err)
		return
	}

	res, err := g.orch.Start(r.Context(), session.StartRequest{
		InterviewID:    id,
		CandidateID:    req.CandidateID,
		JobDescription: req.JobDescription,
	})
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.orch.MarkGreetingDelivered(id)

	resp := startResponse{
		InterviewID: res.InterviewID,
		Status:      string(res.State),
		Greeting:    res.Greeting.Text,
		Resumed:     res.Resumed,
		Transcript:  res.Transcript,
	}
	if len(res.GreetingAudio) > 0 {
		resp.GreetingAudio = base64.StdEncoding.EncodeToString(res.GreetingAudio)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *gateway) endInterview(w http.ResponseWriter, r *http.Request) {
	id, ok := interviewID(w, r)
	if !ok {
		return
	}

	res, err := g.orch.End(r.Context(), id, session.ReasonCompleted)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.conns.Close(id, protocol.Status{Message: "Interview ended", State: string(res.State), TranscriptPath: res.TranscriptPath})

	status := "completed"
	if res.State == session.StateFailed {
		status = "failed"
	}
	writeJSON(w, http.StatusOK, endResponse{
		InterviewID:     res.InterviewID,
		Status:          status,
		TranscriptPath:  res.TranscriptPath,
		Duration:        res.Duration.Round(time.Second).String(),
		DurationSeconds: res.Duration.Seconds(),
		Transcript:      res.Transcript,
	})
}

func (g *gateway) interviewStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := interviewID(w, r)
	if !ok {
		return
	}

	if snap, err := g.orch.Snapshot(id); err == nil {
		writeJSON(w, http.StatusOK, statusResponse{
			InterviewID: snap.InterviewID,
			Status:      string(snap.State),
			Live:        true,
			CandidateID: snap.CandidateID,
			StartedAt:   snap.StartedAt,
			EndedAt:     snap.EndedAt,
			EndReason:   snap.EndReason,
			Connected:   snap.Connected,
			Entries:     len(snap.Transcript),
		})
		return
	}

	stored, err := g.store.GetInterview(r.Context(), id)
	if err != nil {
		g.writeError(w, err)
		return
	}
	state := session.StateEnded
	if stored.EndReason == session.ReasonUpstreamFailure {
		state = session.StateFailed
	}
	writeJSON(w, http.StatusOK, statusResponse{
		InterviewID: stored.InterviewID,
		Status:      string(state),
		CandidateID: stored.CandidateID,
		StartedAt:   stored.StartedAt,
		EndedAt:     stored.EndedAt,
		EndReason:   stored.EndReason,
		Entries:     stored.EntryCount,
	})
}

func (g *gateway) listTranscripts(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSONError(w, http.StatusBadRequest, protocol.CodeBadRequest, "date must be YYYY-MM-DD")
		return
	}

	interviews, err := g.store.ListInterviews(r.Context(), date)
	if err != nil {
		g.writeError(w, fmt.Errorf("list transcripts: %w", err))
		return
	}
	if interviews == nil {
		interviews = []storage.Interview{}
	}
	writeJSON(w, http.StatusOK, interviews)
}

func (g *gateway) getTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := interviewID(w, r)
	if !ok {
		return
	}

	stored, err := g.store.GetInterview(r.Context(), id)
	if err != nil {
		g.writeError(w, err)
		return
	}
	entries, err := g.store.GetEntries(r.Context(), id)
	if err != nil {
		g.writeError(w, fmt.Errorf("get transcript entries: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"interview":  stored,
		"transcript": entries,
	})
}

func (g *gateway) listDates(w http.ResponseWriter, r *http.Request) {
	dates, err := g.store.GetDates(r.Context())
	if err != nil {
		g.writeError(w, fmt.Errorf("get dates: %w", err))
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, dates)
}

func interviewID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !interviewIDPattern.MatchString(id) {
		writeJSONError(w, http.StatusBadRequest, protocol.CodeBadRequest, "invalid interview id")
		return "", false
	}
	return id, true
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", protocol.ErrBadMessage, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, code protocol.ErrorCode, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": string(code)})
}

func (g *gateway) writeError(w http.ResponseWriter, err error) {
	code, status := classify(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("request failed", zap.Error(err))
	}
	writeJSONError(w, status, code, err.Error())
}
