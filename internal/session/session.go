package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sjawhar/interview-agent/internal/transcript"
)

// End reasons recorded on the persisted snapshot.
const (
	ReasonCompleted       = "completed"
	ReasonTimeout         = "timeout"
	ReasonDisconnect      = "disconnect"
	ReasonShutdown        = "shutdown"
	ReasonUpstreamFailure = "upstream_failure"
)

// maxQueuedTurns is how many turns may wait behind the one in flight.
const maxQueuedTurns = 1

// Connection is the live transport currently bound to a session. The session
// does not own it and outlives it.
type Connection struct {
	ID         string
	AttachedAt time.Time
}

// Session is one interview. The identity fields never change. State and
// transcript change only while the turn slot is held.
type Session struct {
	ID             string
	CandidateID    string
	JobDescription string

	turn    chan struct{}
	pending atomic.Int32

	log *transcript.Log

	mu                sync.Mutex
	state             State
	startedAt         time.Time
	endedAt           time.Time
	endReason         string
	conn              *Connection
	attachedBefore    bool
	detachedAt        time.Time
	lastActivity      time.Time
	greetingAudio     []byte
	greetingDelivered bool
	recording         bool
	recordingPath     string
	persisted         bool
	persistFailures   int
	transcriptPath    string
}

func newSession(id, candidateID, jobDescription string, now time.Time) *Session {
	return &Session{
		ID:             id,
		CandidateID:    candidateID,
		JobDescription: jobDescription,
		turn:           make(chan struct{}, 1),
		log:            transcript.NewLog(),
		state:          StateCreated,
		startedAt:      now.UTC(),
		lastActivity:   now.UTC(),
	}
}

// Snapshot is a consistent read-only view of a session.
type Snapshot struct {
	InterviewID    string
	CandidateID    string
	JobDescription string
	State          State
	StartedAt      time.Time
	EndedAt        time.Time
	EndReason      string
	Connected      bool
	Transcript     []transcript.Entry
	TranscriptPath string
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		InterviewID:    s.ID,
		CandidateID:    s.CandidateID,
		JobDescription: s.JobDescription,
		State:          s.state,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		EndReason:      s.endReason,
		Connected:      s.conn != nil,
		Transcript:     s.log.Entries(),
		TranscriptPath: s.transcriptPath,
	}
}

// admitTurn claims the turn slot for a candidate turn, queueing at most
// maxQueuedTurns behind the in-flight one.
func (s *Session) admitTurn(ctx context.Context) (func(), error) {
	if s.pending.Add(1) > 1+maxQueuedTurns {
		s.pending.Add(-1)
		return nil, fmt.Errorf("%w: %s", ErrBusy, s.ID)
	}
	release, err := s.lockTurn(ctx)
	if err != nil {
		s.pending.Add(-1)
		return nil, err
	}
	return func() {
		release()
		s.pending.Add(-1)
	}, nil
}

// lockTurn waits for the turn slot without a queue bound. Lifecycle changes
// use it so an in-flight turn always completes first.
func (s *Session) lockTurn(ctx context.Context) (func(), error) {
	select {
	case s.turn <- struct{}{}:
		return func() { <-s.turn }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, s.state, to)
	}
	s.state = to
	return nil
}

// terminate moves a live session to ENDED or FAILED. It reports false when the
// session was already terminal, leaving endedAt and the reason untouched.
func (s *Session) terminate(to State, reason string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, to) {
		return false
	}
	s.state = to
	s.endedAt = now.UTC()
	s.endReason = reason
	return true
}

func (s *Session) append(speaker transcript.Speaker, text string, now time.Time) transcript.Entry {
	entry := s.log.Append(speaker, text, now)
	s.mu.Lock()
	s.lastActivity = now.UTC()
	s.mu.Unlock()
	return entry
}

func (s *Session) connID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ""
	}
	return s.conn.ID
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now.UTC()
	s.mu.Unlock()
}

func (s *Session) greeting() (transcript.Entry, []byte, bool) {
	entry, ok := s.log.First(transcript.Interviewer)
	s.mu.Lock()
	defer s.mu.Unlock()
	return entry, s.greetingAudio, ok
}

func (s *Session) markGreetingDelivered() {
	s.mu.Lock()
	s.greetingDelivered = true
	s.mu.Unlock()
}

func (s *Session) record() transcript.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transcript.Record{
		InterviewID:    s.ID,
		CandidateID:    s.CandidateID,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		JobDescription: s.JobDescription,
		Transcript:     s.log.Entries(),
		RecordingPath:  s.recordingPath,
		EndReason:      s.endReason,
	}
}

// sweepView reports detached only for sessions that once had a connection;
// a session started over HTTP is bounded by the idle timeout until it attaches.
type sweepView struct {
	state        State
	persisted    bool
	detached     bool
	detachedAt   time.Time
	lastActivity time.Time
}

func (s *Session) sweepView() sweepView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sweepView{
		state:        s.state,
		persisted:    s.persisted,
		detached:     s.conn == nil && s.attachedBefore,
		detachedAt:   s.detachedAt,
		lastActivity: s.lastActivity,
	}
}
