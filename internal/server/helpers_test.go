package server

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/interview-agent/internal/llm"
	"github.com/sjawhar/interview-agent/internal/session"
	"github.com/sjawhar/interview-agent/internal/storage"
)

type cannedLLM struct {
	mu    sync.Mutex
	calls int
}

func (l *cannedLLM) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.calls == 1 {
		return "Welcome to the interview. Tell me about yourself.", nil
	}
	return "Thanks for sharing. What was your hardest bug?", nil
}

// gatedLLM greets immediately and holds every later reply until release is
// closed. entered receives once per held call.
type gatedLLM struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func newGatedLLM() *gatedLLM {
	return &gatedLLM{entered: make(chan struct{}, 4), release: make(chan struct{})}
}

func (l *gatedLLM) Complete(ctx context.Context, _ []llm.Message) (string, error) {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	l.mu.Unlock()
	if first {
		return "Welcome to the interview. Tell me about yourself.", nil
	}

	l.entered <- struct{}{}
	select {
	case <-l.release:
		return "Interesting. How did you test it?", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type echoSTT struct{}

func (echoSTT) Transcribe(_ context.Context, audio []byte) (string, error) {
	return string(audio), nil
}

type fakeTTS struct{}

func (fakeTTS) Synthesize(_ context.Context, text string) ([]byte, error) {
	return []byte("mp3:" + text), nil
}

type testEnv struct {
	srv   *httptest.Server
	orch  *session.Orchestrator
	store *storage.SQLiteStore
	conns *Conns
}

func newTestEnv(t *testing.T, cfg session.Config, resolver CandidateResolver) *testEnv {
	t.Helper()
	return newTestEnvWithLLM(t, cfg, resolver, &cannedLLM{})
}

func newTestEnvWithLLM(t *testing.T, cfg session.Config, resolver CandidateResolver, client llm.Client) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "interviews.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	orch := session.NewOrchestrator(cfg, session.Deps{
		LLM:     client,
		STT:     echoSTT{},
		TTS:     fakeTTS{},
		Archive: storage.NewArchive(store, storage.NewFileWriter(filepath.Join(dir, "transcripts"))),
	})
	conns := NewConns()
	srv := httptest.NewServer(Handler(Options{
		Orchestrator: orch,
		Store:        store,
		Resolver:     resolver,
		Conns:        conns,
	}))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, orch: orch, store: store, conns: conns}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
