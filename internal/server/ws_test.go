package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/interview-agent/internal/session"
)

func dial(t *testing.T, env *testEnv, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + path
	c, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s failed: %v", path, err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readFrame(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	if err := c.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame failed: %v", err)
	}
	return frame
}

func expectType(t *testing.T, frame map[string]any, want string) {
	t.Helper()
	if frame["type"] != want {
		t.Fatalf("expected %s frame, got %v", want, frame)
	}
}

func expectClosed(t *testing.T, c *websocket.Conn) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				t.Fatalf("expected server to close the connection, got %v", err)
			}
			return
		}
	}
}

func TestWSInterviewLifecycle(t *testing.T) {
	env := newTestEnv(t, session.Config{GracePeriod: time.Minute}, nil)
	c := dial(t, env, "/ws/interview/I1?candidate_id=C1&job_description=Senior+Python+role")

	expectType(t, readFrame(t, c), "text")
	audio := readFrame(t, c)
	expectType(t, audio, "audio")
	if audio["sentence"] != "Welcome to the interview. Tell me about yourself." {
		t.Fatalf("expected greeting audio to carry its text, got %v", audio)
	}
	greeting := readFrame(t, c)
	expectType(t, greeting, "transcript")
	if entry := greeting["data"].(map[string]any); entry["speaker"] != "interviewer" {
		t.Fatalf("expected interviewer greeting entry, got %v", entry)
	}

	if err := c.WriteJSON(map[string]string{"type": "text", "data": "I have 5 years of Python experience"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cand := readFrame(t, c)
	expectType(t, cand, "transcript")
	if entry := cand["data"].(map[string]any); entry["speaker"] != "candidate" || entry["text"] != "I have 5 years of Python experience" {
		t.Fatalf("unexpected candidate entry %v", entry)
	}
	reply := readFrame(t, c)
	expectType(t, reply, "text")
	if reply["data"] != "Thanks for sharing. What was your hardest bug?" {
		t.Fatalf("unexpected reply %v", reply)
	}
	expectType(t, readFrame(t, c), "audio")
	expectType(t, readFrame(t, c), "audio")
	expectType(t, readFrame(t, c), "transcript")

	if err := c.WriteJSON(map[string]string{"type": "control", "data": "end"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	status := readFrame(t, c)
	expectType(t, status, "status")
	if status["state"] != string(session.StateEnded) || !strings.HasSuffix(status["transcript_path"].(string), "I1_transcript.json") {
		t.Fatalf("unexpected end status %v", status)
	}
	expectClosed(t, c)

	rec, _, err := env.store.GetRecord(context.Background(), "I1")
	if err != nil {
		t.Fatalf("expected persisted record: %v", err)
	}
	if len(rec.Transcript) != 3 {
		t.Fatalf("expected 3 transcript entries, got %d", len(rec.Transcript))
	}
}

func TestWSUnknownInterview(t *testing.T) {
	env := newTestEnv(t, session.Config{}, nil)
	c := dial(t, env, "/ws/interview/missing")

	frame := readFrame(t, c)
	expectType(t, frame, "error")
	if frame["code"] != "not_found" {
		t.Fatalf("expected not_found, got %v", frame)
	}
	expectClosed(t, c)
}

func TestWSBadFrameDoesNotMutate(t *testing.T) {
	env := newTestEnv(t, session.Config{GracePeriod: time.Minute}, nil)
	c := dial(t, env, "/ws/interview/I2?job_description=jd")
	for i := 0; i < 3; i++ {
		readFrame(t, c)
	}

	for _, raw := range []string{`{oops`, `{"type":"video","data":"x"}`, `{"type":"audio","data":"!!"}`, `{"type":"text","data":"   "}`} {
		if err := c.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		frame := readFrame(t, c)
		if frame["type"] != "error" || frame["code"] != "bad_request" {
			t.Fatalf("expected bad_request for %s, got %v", raw, frame)
		}
	}

	snap, err := env.orch.Snapshot("I2")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Transcript) != 1 {
		t.Fatalf("expected bad frames to leave the transcript alone, got %d entries", len(snap.Transcript))
	}
}

func TestWSNewerConnectionSupersedes(t *testing.T) {
	env := newTestEnv(t, session.Config{GracePeriod: time.Minute}, nil)
	first := dial(t, env, "/ws/interview/I3?job_description=jd")
	for i := 0; i < 3; i++ {
		readFrame(t, first)
	}

	second := dial(t, env, "/ws/interview/I3")

	superseded := readFrame(t, first)
	expectType(t, superseded, "status")
	if superseded["data"] != "superseded" {
		t.Fatalf("expected superseded status, got %v", superseded)
	}
	expectClosed(t, first)

	resumed := readFrame(t, second)
	expectType(t, resumed, "status")
	if resumed["data"] != "resumed" {
		t.Fatalf("expected resumed status, got %v", resumed)
	}
	expectType(t, readFrame(t, second), "transcript")

	waitFor(t, "single tracked connection", func() bool { return env.conns.Len() == 1 })
	snap, err := env.orch.Snapshot("I3")
	if err != nil || !snap.Connected {
		t.Fatalf("expected session to stay connected through the new socket, snap=%+v err=%v", snap, err)
	}
}

func TestWSDisconnectWithinGraceKeepsSession(t *testing.T) {
	env := newTestEnv(t, session.Config{GracePeriod: time.Minute}, nil)
	c := dial(t, env, "/ws/interview/I4?job_description=jd")
	for i := 0; i < 3; i++ {
		readFrame(t, c)
	}
	_ = c.Close()

	waitFor(t, "detach", func() bool {
		snap, err := env.orch.Snapshot("I4")
		return err == nil && !snap.Connected
	})

	again := dial(t, env, "/ws/interview/I4")
	frame := readFrame(t, again)
	if frame["type"] != "status" || frame["data"] != "resumed" {
		t.Fatalf("expected resumed status after reconnect, got %v", frame)
	}
	greeting := readFrame(t, again)
	expectType(t, greeting, "transcript")
}

func TestWSReconnectMidTurnReceivesReply(t *testing.T) {
	gate := newGatedLLM()
	env := newTestEnvWithLLM(t, session.Config{GracePeriod: time.Minute}, nil, gate)
	c := dial(t, env, "/ws/interview/I6?job_description=Go+backend+role")
	for i := 0; i < 3; i++ {
		readFrame(t, c)
	}

	if err := c.WriteJSON(map[string]string{"type": "text", "data": "I wrote a job scheduler"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the turn to reach the language model")
	}
	_ = c.Close()

	again := dial(t, env, "/ws/interview/I6")
	close(gate.release)

	frame := readFrame(t, again)
	if frame["type"] != "status" || frame["data"] != "resumed" {
		t.Fatalf("expected resumed status, got %v", frame)
	}

	var entries []map[string]any
	for len(entries) < 3 {
		frame := readFrame(t, again)
		if frame["type"] == "transcript" {
			entries = append(entries, frame["data"].(map[string]any))
		}
	}
	last := entries[2]
	if last["speaker"] != "interviewer" || last["text"] != "Interesting. How did you test it?" {
		t.Fatalf("expected the in-flight reply on the new connection, got %v", entries)
	}

	if err := again.WriteJSON(map[string]string{"type": "text", "data": "With table tests"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a second turn")
	}
	cand := readFrame(t, again)
	expectType(t, cand, "transcript")
	if entry := cand["data"].(map[string]any); entry["text"] != "With table tests" {
		t.Fatalf("expected no duplicate frames before the next turn, got %v", entry)
	}

	snap, err := env.orch.Snapshot("I6")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Transcript) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(snap.Transcript))
	}
}

func TestWSDisconnectWithoutGraceFinalizes(t *testing.T) {
	env := newTestEnv(t, session.Config{}, nil)
	c := dial(t, env, "/ws/interview/I5?job_description=jd")
	for i := 0; i < 3; i++ {
		readFrame(t, c)
	}
	_ = c.Close()

	waitFor(t, "persisted record", func() bool {
		_, _, err := env.store.GetRecord(context.Background(), "I5")
		return err == nil
	})
	if _, err := env.orch.Snapshot("I5"); err == nil {
		t.Fatal("expected session to be evicted after finalize")
	}
}

func TestCheckOrigin(t *testing.T) {
	g := &gateway{origins: []string{"https://hr.example.com"}}

	req, _ := http.NewRequest(http.MethodGet, "/ws/interview/I1", nil)
	if !g.checkOrigin(req) {
		t.Fatal("expected request without Origin to pass")
	}
	req.Header.Set("Origin", "https://hr.example.com")
	if !g.checkOrigin(req) {
		t.Fatal("expected allowed origin to pass")
	}
	req.Header.Set("Origin", "https://evil.example.com")
	if g.checkOrigin(req) {
		t.Fatal("expected other origin to be rejected")
	}
}
