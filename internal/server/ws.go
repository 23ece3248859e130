package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sjawhar/interview-agent/internal/protocol"
	"github.com/sjawhar/interview-agent/internal/session"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	maxFrameBytes = 16 << 20
)

func (g *gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (g *gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !interviewIDPattern.MatchString(id) {
		writeJSONError(w, http.StatusBadRequest, protocol.CodeBadRequest, "invalid interview id")
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: g.checkOrigin}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("ws upgrade failed", zap.String("interview_id", id), zap.Error(err))
		return
	}
	if g.metrics != nil {
		g.metrics.ConnectionOpened()
		defer g.metrics.ConnectionClosed()
	}

	conn := newWSConn(uuid.NewString(), ws)
	defer conn.closeWith(nil)
	log := g.logger.With(zap.String("interview_id", id), zap.String("conn_id", conn.id))

	// Turns outlive the request so a disconnect never cuts one in half.
	ctx := context.WithoutCancel(r.Context())

	q := r.URL.Query()
	if jd := q.Get("job_description"); jd != "" {
		_, err := g.orch.Start(ctx, session.StartRequest{
			InterviewID:    id,
			CandidateID:    q.Get("candidate_id"),
			JobDescription: jd,
		})
		if err != nil {
			log.Warn("start over websocket failed", zap.Error(err))
			conn.closeWith(errorMessage(err))
			return
		}
	}

	// Register before attaching so a turn finishing right after the attach
	// can find this connection. Its messages queue behind the attach frames.
	prev := g.conns.add(id, conn)
	res, err := g.orch.Attach(ctx, id, conn.id)
	if err != nil {
		g.conns.restore(id, conn, prev)
		conn.closeWith(errorMessage(err))
		return
	}
	defer g.conns.remove(id, conn)
	if prev != nil {
		log.Info("superseding connection", zap.String("previous_conn_id", prev.id))
		prev.closeWith(protocol.Status{Message: "superseded", State: string(res.State)})
	}

	err = conn.writeAll(attachMessages(res))
	conn.open()
	if err != nil {
		log.Debug("initial write failed", zap.Error(err))
		g.orch.Detach(ctx, id, conn.id)
		return
	}

	turns := make(chan protocol.Inbound, 1)
	done := make(chan struct{})
	go g.runTurns(ctx, id, conn, turns, done)

	stopPing := make(chan struct{})
	go keepalive(conn, stopPing)

	readLoop(conn, turns)

	close(stopPing)
	close(turns)
	<-done
	g.orch.Detach(ctx, id, conn.id)
	log.Info("connection closed")
}

func attachMessages(res session.AttachResult) []protocol.Outbound {
	if res.Greeting != nil {
		msgs := []protocol.Outbound{protocol.Text{Text: res.Greeting.Text}}
		if len(res.GreetingAudio) > 0 {
			msgs = append(msgs, protocol.Audio{Audio: res.GreetingAudio, Sentence: res.Greeting.Text})
		}
		return append(msgs, protocol.TranscriptUpdate{Entry: *res.Greeting})
	}

	msgs := []protocol.Outbound{protocol.Status{Message: "resumed", State: string(res.State)}}
	for _, e := range res.Transcript {
		msgs = append(msgs, protocol.TranscriptUpdate{Entry: e})
	}
	return msgs
}

// readLoop decodes frames until the socket fails. Candidate turns queue at
// most one deep; control commands always wait for the queue.
func readLoop(conn *wsConn, turns chan<- protocol.Inbound) {
	conn.ws.SetReadLimit(maxFrameBytes)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))

		in, err := protocol.Decode(raw)
		if err != nil {
			_ = conn.send(errorMessage(err))
			continue
		}
		if _, ok := in.(protocol.ControlInput); ok {
			turns <- in
			continue
		}
		select {
		case turns <- in:
		default:
			_ = conn.send(errorMessage(session.ErrBusy))
		}
	}
}

// runTurns processes queued inputs in order. A turn's messages go to the
// connection attached when it finished, which differs from conn after a
// reconnect.
func (g *gateway) runTurns(ctx context.Context, id string, conn *wsConn, turns <-chan protocol.Inbound, done chan<- struct{}) {
	defer close(done)

	closed := false
	for in := range turns {
		if closed {
			continue
		}
		res, err := g.orch.Turn(ctx, id, in)
		target := g.conns.route(id, res.ConnID, conn)
		if sendErr := target.sendAll(res.Out); sendErr != nil {
			g.logger.Debug("turn write failed", zap.String("interview_id", id), zap.Error(sendErr))
		}
		if err != nil {
			_ = target.send(errorMessage(err))
		}

		_, isControl := in.(protocol.ControlInput)
		if (isControl && err == nil) || session.IsFatal(err) || errors.Is(err, session.ErrNotFound) {
			target.closeWith(nil)
			conn.closeWith(nil)
			closed = true
		}
	}
}

func keepalive(conn *wsConn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
