package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sjawhar/interview-agent/internal/lease"
	"github.com/sjawhar/interview-agent/internal/llm"
	"github.com/sjawhar/interview-agent/internal/storage"
	"github.com/sjawhar/interview-agent/internal/transcript"
)

type scriptedLLM struct {
	mu      sync.Mutex
	calls   [][]llm.Message
	respond func(call int, msgs []llm.Message) (string, error)
}

func (l *scriptedLLM) Complete(ctx context.Context, msgs []llm.Message) (string, error) {
	l.mu.Lock()
	l.calls = append(l.calls, append([]llm.Message(nil), msgs...))
	call := len(l.calls)
	respond := l.respond
	l.mu.Unlock()

	if respond == nil {
		return fmt.Sprintf("Interviewer line %d. What else?", call), nil
	}
	return respond(call, msgs)
}

func (l *scriptedLLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *scriptedLLM) LastCall() []llm.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[len(l.calls)-1]
}

type stubSTT struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, audio []byte) (string, error)
}

func (s *stubSTT) Transcribe(_ context.Context, audio []byte) (string, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.fn == nil {
		return string(audio), nil
	}
	return s.fn(call, audio)
}

type stubTTS struct {
	err error
}

func (s *stubTTS) Synthesize(_ context.Context, text string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("mp3:" + text), nil
}

type memArchive struct {
	mu       sync.Mutex
	records  map[string]transcript.Record
	paths    map[string]string
	failures int
	writes   int
}

func newMemArchive() *memArchive {
	return &memArchive{records: map[string]transcript.Record{}, paths: map[string]string{}}
}

func (a *memArchive) Persist(_ context.Context, rec transcript.Record) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failures > 0 {
		a.failures--
		return "", errors.New("disk full")
	}
	if path, ok := a.paths[rec.InterviewID]; ok {
		return path, nil
	}
	a.writes++
	path := "data/transcripts/" + rec.InterviewID + "_transcript.json"
	a.records[rec.InterviewID] = rec
	a.paths[rec.InterviewID] = path
	return path, nil
}

func (a *memArchive) Lookup(_ context.Context, id string) (transcript.Record, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	if !ok {
		return transcript.Record{}, "", fmt.Errorf("record %s: %w", id, storage.ErrNotFound)
	}
	return rec, a.paths[id], nil
}

func (a *memArchive) record(t *testing.T, id string) transcript.Record {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	if !ok {
		t.Fatalf("expected persisted record for %s", id)
	}
	return rec
}

type stubRecorder struct {
	mu      sync.Mutex
	written map[string]int
	closed  map[string]bool
}

func (r *stubRecorder) Start(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written[id] = 0
	return nil
}

func (r *stubRecorder) Write(id string, audio []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written[id] += len(audio)
	return nil
}

func (r *stubRecorder) Close(id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed[id] = true
	return "data/recordings/" + id + ".wav", nil
}

type countingObserver struct {
	mu        sync.Mutex
	started   int
	ended     map[string]int
	fallbacks int
	upstream  map[Stage]int
	alarms    int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{ended: map[string]int{}, upstream: map[Stage]int{}}
}

func (o *countingObserver) SessionStarted() {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *countingObserver) SessionEnded(reason string) {
	o.mu.Lock()
	o.ended[reason]++
	o.mu.Unlock()
}

func (o *countingObserver) TurnCompleted(_ time.Duration, fallback bool) {
	if fallback {
		o.mu.Lock()
		o.fallbacks++
		o.mu.Unlock()
	}
}

func (o *countingObserver) UpstreamFailure(stage Stage) {
	o.mu.Lock()
	o.upstream[stage]++
	o.mu.Unlock()
}

func (o *countingObserver) PersistFailed(alarm bool) {
	if alarm {
		o.mu.Lock()
		o.alarms++
		o.mu.Unlock()
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 26, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type harness struct {
	orch     *Orchestrator
	llm      *scriptedLLM
	stt      *stubSTT
	tts      *stubTTS
	archive  *memArchive
	recorder *stubRecorder
	observer *countingObserver
	clock    *fakeClock
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		llm:      &scriptedLLM{},
		stt:      &stubSTT{},
		tts:      &stubTTS{},
		archive:  newMemArchive(),
		recorder: &stubRecorder{written: map[string]int{}, closed: map[string]bool{}},
		observer: newCountingObserver(),
		clock:    newFakeClock(),
	}
	h.orch = NewOrchestrator(cfg, Deps{
		LLM:      h.llm,
		STT:      h.stt,
		TTS:      h.tts,
		Archive:  h.archive,
		Recorder: h.recorder,
		Observer: h.observer,
		Now:      h.clock.Now,
	})
	return h
}

func (h *harness) start(t *testing.T, id string) StartResult {
	t.Helper()
	res, err := h.orch.Start(context.Background(), StartRequest{InterviewID: id, CandidateID: "cand-" + id, JobDescription: "Senior Python role"})
	if err != nil {
		t.Fatalf("Start(%s) failed: %v", id, err)
	}
	return res
}

func (h *harness) session(t *testing.T, id string) *Session {
	t.Helper()
	s, err := h.orch.Registry().Get(id)
	if err != nil {
		t.Fatalf("expected resident session %s: %v", id, err)
	}
	return s
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateCreated, StateStarted, true},
		{StateStarted, StateAwaitingResponse, true},
		{StateAwaitingResponse, StateAwaitingResponse, true},
		{StateAwaitingResponse, StateEnded, true},
		{StateCreated, StateFailed, true},
		{StateStarted, StateFailed, true},
		{StateCreated, StateAwaitingResponse, false},
		{StateAwaitingResponse, StateStarted, false},
		{StateEnded, StateAwaitingResponse, false},
		{StateEnded, StateFailed, false},
		{StateFailed, StateEnded, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRegistryGetOrCreateConcurrentSingleSession(t *testing.T) {
	registry := NewRegistry(nil)

	const callers = 64
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		seen     = map[*Session]bool{}
		creators int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, created, err := registry.GetOrCreate(context.Background(), "I1", "C1", "jd")
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			mu.Lock()
			seen[s] = true
			if created {
				creators++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 1 || creators != 1 {
		t.Fatalf("expected one session and one creator, got %d sessions and %d creators", len(seen), creators)
	}
	if registry.Len() != 1 {
		t.Fatalf("expected one resident session, got %d", registry.Len())
	}
}

func TestRegistryLeaseBlocksSecondInstance(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	first := NewRegistry(lease.NewManager(rdb, time.Minute))
	second := NewRegistry(lease.NewManager(rdb, time.Minute))

	if _, _, err := first.GetOrCreate(ctx, "I1", "C1", "jd"); err != nil {
		t.Fatalf("first GetOrCreate failed: %v", err)
	}
	if _, _, err := second.GetOrCreate(ctx, "I1", "C1", "jd"); !errors.Is(err, ErrOwnedElsewhere) {
		t.Fatalf("expected ErrOwnedElsewhere, got %v", err)
	}

	if err := first.Remove(ctx, "I1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, created, err := second.GetOrCreate(ctx, "I1", "C1", "jd"); err != nil || !created {
		t.Fatalf("expected second instance to take over, created=%v err=%v", created, err)
	}
}

func TestBuildMessagesMapsRolesAndKickoff(t *testing.T) {
	at := time.Date(2026, 2, 26, 9, 0, 0, 0, time.UTC)
	window := []transcript.Entry{
		{Timestamp: at, Speaker: transcript.Interviewer, Text: "Hi, tell me about yourself."},
		{Timestamp: at, Speaker: transcript.Candidate, Text: "I write Python."},
	}

	msgs := buildMessages("Senior Python role", window)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || !strings.Contains(msgs[0].Content, "Senior Python role") {
		t.Fatalf("unexpected system message %+v", msgs[0])
	}
	if msgs[1].Role != llm.RoleUser || msgs[1].Content != KickoffLine {
		t.Fatalf("expected kickoff line, got %+v", msgs[1])
	}
	if msgs[2].Role != llm.RoleAssistant || msgs[3].Role != llm.RoleUser {
		t.Fatalf("unexpected roles %s, %s", msgs[2].Role, msgs[3].Role)
	}

	msgs = buildMessages("jd", window[1:])
	if len(msgs) != 2 || msgs[1].Content != "I write Python." {
		t.Fatalf("window starting with candidate must not get kickoff, got %+v", msgs)
	}
}
