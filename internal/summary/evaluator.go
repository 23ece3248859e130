package summary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sjawhar/interview-agent/internal/llm"
	"github.com/sjawhar/interview-agent/internal/storage"
	"github.com/sjawhar/interview-agent/internal/transcript"
)

const DefaultSystemPrompt = `You review transcripts of technical job interviews. Using the job description and transcript provided, write a concise evaluation in markdown with these sections: Overview, Strengths, Concerns, Recommendation. Ground every point in what the candidate actually said.`

const minWords = 20

// Store persists evaluation results. SQLiteStore satisfies it.
type Store interface {
	ClaimSummaryRequest(ctx context.Context, interviewID, promptHash string) (bool, error)
	UpdateSummary(ctx context.Context, interviewID, summary, status string) error
}

// Evaluator writes a post-interview evaluation for each persisted transcript.
type Evaluator struct {
	client       llm.Client
	store        Store
	systemPrompt string
	logger       *zap.Logger
	sleep        func(time.Duration)
}

func New(client llm.Client, store Store, systemPrompt string, logger *zap.Logger) *Evaluator {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		client:       client,
		store:        store,
		systemPrompt: systemPrompt,
		logger:       logger,
		sleep:        time.Sleep,
	}
}

// Evaluate generates and stores the evaluation for rec. Interviews too short
// to judge and requests already claimed are skipped with an empty result.
func (e *Evaluator) Evaluate(ctx context.Context, rec transcript.Record) (string, error) {
	text := rec.PlainText()
	if len(strings.Fields(text)) < minWords {
		return "", nil
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: e.systemPrompt},
		{Role: llm.RoleUser, Content: userContent(rec.JobDescription, SampleTranscript(text, 1500, 500, 1000))},
	}

	hash := sha256.Sum256([]byte(e.systemPrompt + "\x00" + messages[1].Content))
	claimed, err := e.store.ClaimSummaryRequest(ctx, rec.InterviewID, hex.EncodeToString(hash[:]))
	if err != nil {
		return "", fmt.Errorf("claim summary request: %w", err)
	}
	if !claimed {
		return "", nil
	}

	if err := e.store.UpdateSummary(ctx, rec.InterviewID, "", storage.SummaryRunning); err != nil {
		return "", fmt.Errorf("mark summary running: %w", err)
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		result, err := e.client.Complete(ctx, messages)
		if err == nil && strings.TrimSpace(result) != "" {
			result = strings.TrimSpace(result)
			if err := e.store.UpdateSummary(ctx, rec.InterviewID, result, storage.SummaryCompleted); err != nil {
				return "", fmt.Errorf("store summary: %w", err)
			}
			return result, nil
		}
		if err == nil {
			err = fmt.Errorf("empty evaluation")
		}
		lastErr = err
		if llm.IsFatal(err) {
			break
		}
		if attempt < len(backoff)-1 {
			e.sleep(backoff[attempt])
		}
	}

	if err := e.store.UpdateSummary(ctx, rec.InterviewID, "", storage.SummaryFailed); err != nil {
		e.logger.Warn("mark summary failed", zap.String("interview_id", rec.InterviewID), zap.Error(err))
	}
	return "", fmt.Errorf("evaluate interview failed after retries: %w", lastErr)
}

// OnPersisted runs Evaluate as a post-persist hook.
func (e *Evaluator) OnPersisted(ctx context.Context, rec transcript.Record, _ string) {
	summary, err := e.Evaluate(ctx, rec)
	if err != nil {
		e.logger.Error("interview evaluation failed", zap.String("interview_id", rec.InterviewID), zap.Error(err))
		return
	}
	if summary != "" {
		e.logger.Info("interview evaluation stored", zap.String("interview_id", rec.InterviewID))
	}
}

func userContent(jobDescription, text string) string {
	return fmt.Sprintf("Job description:\n%s\n\nTranscript:\n%s", strings.TrimSpace(jobDescription), text)
}

// SampleTranscript keeps the opening, middle and closing of a long transcript
// so the request stays bounded.
func SampleTranscript(text string, firstN, midN, lastN int) string {
	words := strings.Fields(text)
	total := len(words)

	if total <= firstN+midN+lastN {
		return text
	}

	first := strings.Join(words[:firstN], " ")
	midStart := (total - midN) / 2
	mid := strings.Join(words[midStart:midStart+midN], " ")
	last := strings.Join(words[total-lastN:], " ")

	return first + "\n\n[...]\n\n" + mid + "\n\n[...]\n\n" + last
}
