package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sjawhar/interview-agent/internal/llm"
	"github.com/sjawhar/interview-agent/internal/protocol"
	"github.com/sjawhar/interview-agent/internal/speech"
	"github.com/sjawhar/interview-agent/internal/storage"
	"github.com/sjawhar/interview-agent/internal/transcript"
)

const (
	defaultContextWindow     = 20
	defaultPersistAlarmAfter = 3
	defaultFallbackUtterance = "I'm sorry, could you repeat that?"
	defaultFallbackGreeting  = "Hello, and thank you for joining today. Could you start by telling me a little about your background and what draws you to this role?"
	upstreamAttempts         = 2
)

type Config struct {
	// ContextWindow is how many trailing transcript entries reach the LLM.
	ContextWindow int
	// GracePeriod keeps a disconnected session resident. Zero finalizes on
	// disconnect.
	GracePeriod time.Duration
	// IdleTimeout ends sessions with no activity. Zero disables it.
	IdleTimeout       time.Duration
	STTTimeout        time.Duration
	LLMTimeout        time.Duration
	TTSTimeout        time.Duration
	PersistAlarmAfter int
	FallbackUtterance string
	FallbackGreeting  string
}

func (c *Config) applyDefaults() {
	if c.ContextWindow <= 0 {
		c.ContextWindow = defaultContextWindow
	}
	if c.STTTimeout <= 0 {
		c.STTTimeout = 20 * time.Second
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 30 * time.Second
	}
	if c.TTSTimeout <= 0 {
		c.TTSTimeout = 15 * time.Second
	}
	if c.PersistAlarmAfter <= 0 {
		c.PersistAlarmAfter = defaultPersistAlarmAfter
	}
	if strings.TrimSpace(c.FallbackUtterance) == "" {
		c.FallbackUtterance = defaultFallbackUtterance
	}
	if strings.TrimSpace(c.FallbackGreeting) == "" {
		c.FallbackGreeting = defaultFallbackGreeting
	}
}

// Deps are the collaborators of an Orchestrator. TTS, Recorder, Observer and
// Hooks are optional.
type Deps struct {
	Registry *Registry
	LLM      llm.Client
	STT      speech.Transcriber
	TTS      speech.Synthesizer
	Archive  Archive
	Recorder Recorder
	Observer Observer
	Hooks    []PersistHook
	Logger   *zap.Logger
	Now      func() time.Time
}

// Orchestrator drives interview lifecycles and turns. Every state or
// transcript mutation happens while holding the session's turn slot.
type Orchestrator struct {
	cfg      Config
	registry *Registry
	llm      llm.Client
	stt      speech.Transcriber
	tts      speech.Synthesizer
	archive  Archive
	recorder Recorder
	observer Observer
	hooks    []PersistHook
	logger   *zap.Logger
	now      func() time.Time

	hookWG sync.WaitGroup
}

func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	cfg.applyDefaults()

	o := &Orchestrator{
		cfg:      cfg,
		registry: deps.Registry,
		llm:      deps.LLM,
		stt:      deps.STT,
		tts:      deps.TTS,
		archive:  deps.Archive,
		recorder: deps.Recorder,
		observer: deps.Observer,
		hooks:    deps.Hooks,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if o.registry == nil {
		o.registry = NewRegistry(nil)
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.registry.now = o.now
	return o
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

type StartRequest struct {
	InterviewID    string
	CandidateID    string
	JobDescription string
}

type StartResult struct {
	InterviewID   string
	State         State
	Greeting      transcript.Entry
	GreetingAudio []byte
	Resumed       bool
	Transcript    []transcript.Entry
}

// Start creates the session for an interview and produces the greeting, or
// resumes the resident session without calling the LLM again.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	if strings.TrimSpace(req.InterviewID) == "" {
		return StartResult{}, fmt.Errorf("%w: interview id is required", protocol.ErrBadMessage)
	}

	if _, err := o.registry.Get(req.InterviewID); err != nil {
		if strings.TrimSpace(req.JobDescription) == "" {
			return StartResult{}, fmt.Errorf("%w: job description is required", protocol.ErrBadMessage)
		}
		if _, _, err := o.archive.Lookup(ctx, req.InterviewID); err == nil {
			return StartResult{}, fmt.Errorf("%w: interview %s already ended", ErrInvalidState, req.InterviewID)
		}
	}

	s, _, err := o.registry.GetOrCreate(ctx, req.InterviewID, req.CandidateID, req.JobDescription)
	if err != nil {
		return StartResult{}, err
	}

	release, err := s.lockTurn(ctx)
	if err != nil {
		return StartResult{}, err
	}
	defer release()

	resumed := true
	switch state := s.State(); {
	case state.Terminal():
		return StartResult{}, fmt.Errorf("%w: interview %s is %s", ErrInvalidState, s.ID, state)
	case state == StateCreated:
		if err := o.greet(ctx, s); err != nil {
			return StartResult{}, err
		}
		resumed = false
	}

	greeting, audio, _ := s.greeting()
	return StartResult{
		InterviewID:   s.ID,
		State:         s.State(),
		Greeting:      greeting,
		GreetingAudio: audio,
		Resumed:       resumed,
		Transcript:    s.log.Entries(),
	}, nil
}

func (o *Orchestrator) greet(ctx context.Context, s *Session) error {
	if err := s.transition(StateStarted); err != nil {
		return err
	}
	o.observer.SessionStarted()
	o.startRecording(s)

	text, err := o.complete(ctx, buildMessages(s.JobDescription, nil))
	if err != nil {
		if IsFatal(err) {
			o.fail(ctx, s, err)
			return err
		}
		o.logger.Warn("greeting fell back to default",
			zap.String("interview_id", s.ID),
			zap.Error(err),
		)
		text = o.cfg.FallbackGreeting
	}

	entry := s.append(transcript.Interviewer, text, o.now())
	if err := s.transition(StateAwaitingResponse); err != nil {
		return err
	}

	audio := o.synthesizeWhole(ctx, s.ID, entry.Text)
	s.mu.Lock()
	s.greetingAudio = audio
	s.mu.Unlock()

	o.logger.Info("interview started",
		zap.String("interview_id", s.ID),
		zap.String("candidate_id", s.CandidateID),
	)
	return nil
}

// MarkGreetingDelivered records that the greeting reached the candidate
// outside a live connection, so a later attach reports a resume instead.
func (o *Orchestrator) MarkGreetingDelivered(interviewID string) {
	if s, err := o.registry.Get(interviewID); err == nil {
		s.markGreetingDelivered()
	}
}

// Snapshot returns the live view of a resident interview.
func (o *Orchestrator) Snapshot(interviewID string) (Snapshot, error) {
	s, err := o.registry.Get(interviewID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// ProcessTurn runs one candidate turn. Outbound messages produced before a
// failure are still returned alongside the error.
func (o *Orchestrator) ProcessTurn(ctx context.Context, interviewID string, in protocol.Inbound) ([]protocol.Outbound, error) {
	res, err := o.Turn(ctx, interviewID, in)
	return res.Out, err
}

// TurnResult carries a turn's messages and the connection that was attached
// when the turn finished. Messages belong to that connection.
type TurnResult struct {
	Out    []protocol.Outbound
	ConnID string
}

// Turn is ProcessTurn reporting the attached connection. The connection is
// read before the turn slot is released, so a reconnect either sees the turn
// in its resume snapshot or becomes the turn's recipient, never both.
func (o *Orchestrator) Turn(ctx context.Context, interviewID string, in protocol.Inbound) (TurnResult, error) {
	s, err := o.registry.Get(interviewID)
	if err != nil {
		return TurnResult{}, err
	}

	var text string
	switch msg := in.(type) {
	case protocol.ControlInput:
		if state := s.State(); state.Terminal() {
			return TurnResult{}, fmt.Errorf("%w: interview %s is %s", ErrInvalidState, s.ID, state)
		}
		out, err := o.control(ctx, interviewID, msg)
		return TurnResult{Out: out, ConnID: s.connID()}, err
	case protocol.TextInput:
		text = strings.TrimSpace(msg.Text)
	case protocol.AudioInput:
	default:
		return TurnResult{}, fmt.Errorf("%w: unsupported input %T", protocol.ErrBadMessage, in)
	}

	release, err := s.admitTurn(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	defer release()

	out, err := o.candidateTurn(ctx, s, in, text)
	return TurnResult{Out: out, ConnID: s.connID()}, err
}

// candidateTurn runs the turn body. The caller holds the turn slot.
func (o *Orchestrator) candidateTurn(ctx context.Context, s *Session, in protocol.Inbound, text string) ([]protocol.Outbound, error) {
	if state := s.State(); state != StateAwaitingResponse {
		return nil, fmt.Errorf("%w: interview %s is %s", ErrInvalidState, s.ID, state)
	}

	began := o.now()
	s.touch(began)

	if audio, ok := in.(protocol.AudioInput); ok {
		o.recordAudio(s, audio.Audio)
		var err error
		text, err = o.transcribe(ctx, audio.Audio)
		if err != nil {
			if IsFatal(err) {
				o.fail(ctx, s, err)
			}
			return nil, err
		}
		if text == "" {
			return []protocol.Outbound{protocol.Status{Message: "no speech detected", State: string(StateAwaitingResponse)}}, nil
		}
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", protocol.ErrBadMessage)
	}

	candidate := s.append(transcript.Candidate, text, o.now())
	out := []protocol.Outbound{protocol.TranscriptUpdate{Entry: candidate}}

	reply, err := o.complete(ctx, buildMessages(s.JobDescription, s.log.Window(o.cfg.ContextWindow)))
	fallback := false
	if err != nil {
		if IsFatal(err) {
			o.fail(ctx, s, err)
			return out, err
		}
		o.logger.Warn("interviewer reply fell back",
			zap.String("interview_id", s.ID),
			zap.Error(err),
		)
		reply = o.cfg.FallbackUtterance
		fallback = true
	}

	interviewer := s.append(transcript.Interviewer, reply, o.now())
	out = append(out, protocol.Text{Text: interviewer.Text})
	out = append(out, o.synthesizeSentences(ctx, s.ID, interviewer.Text)...)
	out = append(out, protocol.TranscriptUpdate{Entry: interviewer})

	o.observer.TurnCompleted(o.now().Sub(began), fallback)
	return out, nil
}

func (o *Orchestrator) control(ctx context.Context, interviewID string, msg protocol.ControlInput) ([]protocol.Outbound, error) {
	if msg.Command != protocol.CommandEnd {
		return nil, fmt.Errorf("%w: unknown control command %q", protocol.ErrBadMessage, msg.Command)
	}
	res, err := o.End(ctx, interviewID, ReasonCompleted)
	if err != nil {
		return nil, err
	}
	return []protocol.Outbound{protocol.Status{
		Message:        "Interview ended",
		State:          string(res.State),
		TranscriptPath: res.TranscriptPath,
	}}, nil
}

type EndResult struct {
	InterviewID    string
	State          State
	TranscriptPath string
	Duration       time.Duration
	Transcript     []transcript.Entry
}

// End finishes an interview. It waits for an in-flight turn, persists the
// transcript once, and evicts the session. Ending an interview that is no
// longer resident returns the stored record.
func (o *Orchestrator) End(ctx context.Context, interviewID, reason string) (EndResult, error) {
	s, err := o.registry.Get(interviewID)
	if err != nil {
		return o.storedResult(ctx, interviewID)
	}

	release, err := s.lockTurn(ctx)
	if err != nil {
		return EndResult{}, err
	}
	defer release()

	if s.terminate(StateEnded, reason, o.now()) {
		o.logger.Info("interview ended",
			zap.String("interview_id", s.ID),
			zap.String("reason", reason),
		)
	}
	return o.finalize(ctx, s)
}

func (o *Orchestrator) storedResult(ctx context.Context, interviewID string) (EndResult, error) {
	rec, path, err := o.archive.Lookup(ctx, interviewID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return EndResult{}, fmt.Errorf("%w: %s", ErrNotFound, interviewID)
		}
		return EndResult{}, fmt.Errorf("lookup record: %w", err)
	}
	state := StateEnded
	if rec.EndReason == ReasonUpstreamFailure {
		state = StateFailed
	}
	return EndResult{
		InterviewID:    rec.InterviewID,
		State:          state,
		TranscriptPath: path,
		Duration:       rec.Duration(),
		Transcript:     rec.Transcript,
	}, nil
}

// fail moves the session to FAILED and persists what exists. The caller
// holds the turn slot.
func (o *Orchestrator) fail(ctx context.Context, s *Session, cause error) {
	if !s.terminate(StateFailed, ReasonUpstreamFailure, o.now()) {
		return
	}
	o.logger.Error("interview failed",
		zap.String("interview_id", s.ID),
		zap.Error(cause),
	)
	if _, err := o.finalize(ctx, s); err != nil {
		o.logger.Error("persist failed interview",
			zap.String("interview_id", s.ID),
			zap.Error(err),
		)
	}
}

// finalize persists a terminal session exactly once. On failure the session
// stays resident so the sweeper can retry. The caller holds the turn slot.
func (o *Orchestrator) finalize(ctx context.Context, s *Session) (EndResult, error) {
	s.mu.Lock()
	persisted, path := s.persisted, s.transcriptPath
	s.mu.Unlock()
	if persisted {
		return o.endResult(s, path), nil
	}

	o.stopRecording(s)
	rec := s.record()

	path, err := o.archive.Persist(ctx, rec)
	if err != nil {
		s.mu.Lock()
		s.persistFailures++
		failures := s.persistFailures
		s.mu.Unlock()

		alarm := failures >= o.cfg.PersistAlarmAfter
		o.observer.PersistFailed(alarm)
		o.logger.Error("persist transcript failed",
			zap.String("interview_id", s.ID),
			zap.Int("attempt", failures),
			zap.Bool("alarm", alarm),
			zap.Error(err),
		)
		return EndResult{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.mu.Lock()
	s.persisted = true
	s.transcriptPath = path
	reason := s.endReason
	s.mu.Unlock()

	if err := o.registry.evict(ctx, s); err != nil {
		o.logger.Warn("release session", zap.String("interview_id", s.ID), zap.Error(err))
	}
	o.observer.SessionEnded(reason)
	o.logger.Info("transcript persisted",
		zap.String("interview_id", s.ID),
		zap.String("path", path),
		zap.Int("entries", len(rec.Transcript)),
	)
	o.runHooks(rec, path)

	return o.endResult(s, path), nil
}

func (o *Orchestrator) endResult(s *Session, path string) EndResult {
	rec := s.record()
	return EndResult{
		InterviewID:    s.ID,
		State:          s.State(),
		TranscriptPath: path,
		Duration:       rec.Duration(),
		Transcript:     rec.Transcript,
	}
}

func (o *Orchestrator) runHooks(rec transcript.Record, path string) {
	for _, hook := range o.hooks {
		o.hookWG.Add(1)
		go func(hook PersistHook) {
			defer o.hookWG.Done()
			hook(context.Background(), rec, path)
		}(hook)
	}
}

type AttachResult struct {
	State State
	// Greeting is set when the greeting has not reached the candidate yet.
	Greeting      *transcript.Entry
	GreetingAudio []byte
	Resumed       bool
	Superseded    string
	Transcript    []transcript.Entry
}

// Attach binds a live connection to the session, replacing any older one.
// It waits for an in-flight turn so the resume snapshot includes its reply.
func (o *Orchestrator) Attach(ctx context.Context, interviewID, connID string) (AttachResult, error) {
	s, err := o.registry.Get(interviewID)
	if err != nil {
		return AttachResult{}, err
	}
	release, err := s.lockTurn(ctx)
	if err != nil {
		return AttachResult{}, err
	}
	defer release()
	greeting, audio, hasGreeting := s.greeting()
	now := o.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return AttachResult{}, fmt.Errorf("%w: interview %s is %s", ErrInvalidState, s.ID, s.state)
	}

	res := AttachResult{State: s.state, Resumed: s.attachedBefore}
	if s.conn != nil && s.conn.ID != connID {
		res.Superseded = s.conn.ID
	}
	s.conn = &Connection{ID: connID, AttachedAt: now}
	s.attachedBefore = true
	s.detachedAt = time.Time{}
	s.lastActivity = now

	if hasGreeting && !s.greetingDelivered {
		res.Greeting = &greeting
		res.GreetingAudio = audio
		s.greetingDelivered = true
	}
	if res.Resumed {
		res.Transcript = s.log.Entries()
	}

	o.logger.Info("connection attached",
		zap.String("interview_id", s.ID),
		zap.String("conn_id", connID),
		zap.Bool("resumed", res.Resumed),
	)
	return res, nil
}

// Detach unbinds connID. A stale connection id is ignored. With no grace
// period the session is finalized at once.
func (o *Orchestrator) Detach(ctx context.Context, interviewID, connID string) {
	s, err := o.registry.Get(interviewID)
	if err != nil {
		return
	}

	s.mu.Lock()
	if s.conn == nil || s.conn.ID != connID {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.detachedAt = o.now().UTC()
	s.mu.Unlock()

	o.logger.Info("connection detached",
		zap.String("interview_id", interviewID),
		zap.String("conn_id", connID),
		zap.Duration("grace", o.cfg.GracePeriod),
	)

	if o.cfg.GracePeriod > 0 {
		return
	}
	if _, err := o.End(ctx, interviewID, ReasonDisconnect); err != nil {
		o.logger.Error("finalize on disconnect", zap.String("interview_id", interviewID), zap.Error(err))
	}
}

// Sweep ends sessions whose grace period or idle timeout has elapsed, retries
// pending persistence, and renews leases of live sessions.
func (o *Orchestrator) Sweep(ctx context.Context, now time.Time) {
	for _, s := range o.registry.List() {
		view := s.sweepView()

		switch {
		case view.state.Terminal():
			if view.persisted {
				continue
			}
			o.retryFinalize(ctx, s)
		case o.expiry(view, now) != "":
			o.expire(ctx, s, now)
		default:
			if err := o.registry.renew(ctx, s.ID); err != nil {
				o.logger.Warn("renew session lease", zap.String("interview_id", s.ID), zap.Error(err))
			}
		}
	}
}

// expiry says why a live session is due to end at now, or "" if it is not.
func (o *Orchestrator) expiry(view sweepView, now time.Time) string {
	switch {
	case view.detached && now.Sub(view.detachedAt) >= o.cfg.GracePeriod:
		return "grace period elapsed"
	case o.cfg.IdleTimeout > 0 && now.Sub(view.lastActivity) >= o.cfg.IdleTimeout:
		return "idle timeout"
	}
	return ""
}

// expire ends s if it is still due once the turn slot is held. A reconnect or
// turn that landed after the sweep looked keeps the session alive.
func (o *Orchestrator) expire(ctx context.Context, s *Session, now time.Time) {
	release, err := s.lockTurn(ctx)
	if err != nil {
		return
	}
	defer release()

	view := s.sweepView()
	if view.state.Terminal() {
		return
	}
	why := o.expiry(view, now)
	if why == "" {
		o.logger.Debug("interview active again, not expiring", zap.String("interview_id", s.ID))
		return
	}

	o.logger.Info("expiring interview", zap.String("interview_id", s.ID), zap.String("why", why))
	s.terminate(StateEnded, ReasonTimeout, o.now())
	if _, err := o.finalize(ctx, s); err != nil {
		o.logger.Error("expire interview", zap.String("interview_id", s.ID), zap.Error(err))
	}
}

func (o *Orchestrator) retryFinalize(ctx context.Context, s *Session) {
	release, err := s.lockTurn(ctx)
	if err != nil {
		return
	}
	defer release()
	if _, err := o.finalize(ctx, s); err != nil {
		o.logger.Error("retry persistence", zap.String("interview_id", s.ID), zap.Error(err))
	}
}

// Shutdown ends every resident session and waits for background hooks.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range o.registry.List() {
		if _, err := o.End(ctx, s.ID, ReasonShutdown); err != nil {
			errs = append(errs, fmt.Errorf("end %s: %w", s.ID, err))
		}
	}

	done := make(chan struct{})
	go func() {
		o.hookWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

// complete calls the LLM with a per-attempt timeout, retrying once.
func (o *Orchestrator) complete(ctx context.Context, messages []llm.Message) (string, error) {
	if o.llm == nil {
		return "", &UpstreamError{Stage: StageLLM, Err: errors.New("language model is not configured")}
	}

	var lastErr error
	for attempt := 1; attempt <= upstreamAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.LLMTimeout)
		text, err := o.llm.Complete(callCtx, messages)
		cancel()

		text = strings.TrimSpace(text)
		if err == nil && text != "" {
			return text, nil
		}
		if err == nil {
			err = errors.New("empty completion")
		}
		if llm.IsFatal(err) {
			o.observer.UpstreamFailure(StageLLM)
			return "", &UpstreamError{Stage: StageLLM, Fatal: true, Err: err}
		}
		o.observer.UpstreamFailure(StageLLM)
		o.logger.Warn("llm attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", &UpstreamError{Stage: StageLLM, Err: lastErr}
}

// transcribe calls STT with a per-attempt timeout, retrying once. Malformed
// audio is fatal and never retried.
func (o *Orchestrator) transcribe(ctx context.Context, audio []byte) (string, error) {
	if o.stt == nil {
		return "", &UpstreamError{Stage: StageSTT, Err: errors.New("speech-to-text is not configured")}
	}

	var lastErr error
	for attempt := 1; attempt <= upstreamAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.STTTimeout)
		text, err := o.stt.Transcribe(callCtx, audio)
		cancel()
		if err == nil {
			return strings.TrimSpace(text), nil
		}

		o.observer.UpstreamFailure(StageSTT)
		if errors.Is(err, speech.ErrMalformedAudio) {
			return "", &UpstreamError{Stage: StageSTT, Fatal: true, Err: err}
		}
		o.logger.Warn("stt attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", &UpstreamError{Stage: StageSTT, Err: lastErr}
}

func (o *Orchestrator) synthesizeSentences(ctx context.Context, interviewID, text string) []protocol.Outbound {
	if o.tts == nil {
		return nil
	}
	var out []protocol.Outbound
	for _, sentence := range speech.SplitSentences(text) {
		audio := o.synthesizeWhole(ctx, interviewID, sentence)
		if audio == nil {
			continue
		}
		out = append(out, protocol.Audio{Audio: audio, Sentence: sentence})
	}
	return out
}

// synthesizeWhole returns nil when TTS is disabled or fails; the turn then
// continues as text only.
func (o *Orchestrator) synthesizeWhole(ctx context.Context, interviewID, text string) []byte {
	if o.tts == nil {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.TTSTimeout)
	defer cancel()

	audio, err := o.tts.Synthesize(callCtx, text)
	if err != nil || len(audio) == 0 {
		o.observer.UpstreamFailure(StageTTS)
		o.logger.Warn("tts degraded to text",
			zap.String("interview_id", interviewID),
			zap.Error(err),
		)
		return nil
	}
	return audio
}

func (o *Orchestrator) startRecording(s *Session) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Start(s.ID); err != nil {
		o.logger.Warn("start recording", zap.String("interview_id", s.ID), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.recording = true
	s.mu.Unlock()
}

func (o *Orchestrator) recordAudio(s *Session, audio []byte) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Write(s.ID, audio); err != nil {
		o.logger.Warn("record audio", zap.String("interview_id", s.ID), zap.Error(err))
	}
}

func (o *Orchestrator) stopRecording(s *Session) {
	s.mu.Lock()
	active := s.recording
	s.recording = false
	s.mu.Unlock()
	if !active || o.recorder == nil {
		return
	}

	path, err := o.recorder.Close(s.ID)
	if err != nil {
		o.logger.Warn("close recording", zap.String("interview_id", s.ID), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.recordingPath = path
	s.mu.Unlock()
}
