// Package candidates resolves a candidate's name to their scheduled interview.
package candidates

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

var (
	ErrNoCandidate = errors.New("no scheduled interview for this name")
	ErrNoInterview = errors.New("no active interview for this candidate")
)

// IsNotFound reports whether err means the name did not resolve.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoCandidate) || errors.Is(err, ErrNoInterview)
}

var (
	candidateStatuses = []string{"scheduled", "email_sent", "approved"}
	interviewStatuses = []string{"scheduled", "in_progress"}
)

type Candidate struct {
	ID           string `bson:"-" json:"id"`
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email,omitempty" json:"email,omitempty"`
	Status       string `bson:"status" json:"status"`
	JobPostingID string `bson:"job_posting_id" json:"job_posting_id"`
}

type Interview struct {
	ID          string `bson:"-" json:"id"`
	CandidateID string `bson:"candidate_id" json:"candidate_id"`
	Status      string `bson:"status" json:"status"`
}

// Match is what a successful lookup returns to the caller.
type Match struct {
	Candidate      Candidate `json:"candidate"`
	Interview      Interview `json:"interview"`
	JobDescription string    `json:"job_description"`
}

// Store is the document-level lookup the resolver needs. Find methods return
// (zero, false, nil) when nothing matches.
type Store interface {
	FindCandidate(ctx context.Context, filter bson.M) (Candidate, bool, error)
	FindInterview(ctx context.Context, filter bson.M) (Interview, bool, error)
	FindJobDescription(ctx context.Context, jobPostingID string) (string, error)
}

type Resolver struct {
	store  Store
	logger *zap.Logger
}

func NewResolver(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve finds the candidate by exact, case-insensitive name and their
// scheduled or in-progress interview. A missing job posting yields an empty
// job description rather than an error.
func (r *Resolver) Resolve(ctx context.Context, name string) (Match, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Match{}, ErrNoCandidate
	}

	candidate, ok, err := r.store.FindCandidate(ctx, candidateFilter(name))
	if err != nil {
		return Match{}, fmt.Errorf("find candidate: %w", err)
	}
	if !ok {
		return Match{}, ErrNoCandidate
	}

	interview, ok, err := r.store.FindInterview(ctx, interviewFilter(candidate.ID))
	if err != nil {
		return Match{}, fmt.Errorf("find interview: %w", err)
	}
	if !ok {
		return Match{}, ErrNoInterview
	}

	jd, err := r.store.FindJobDescription(ctx, candidate.JobPostingID)
	if err != nil {
		r.logger.Warn("job posting lookup failed",
			zap.String("candidate_id", candidate.ID),
			zap.String("job_posting_id", candidate.JobPostingID),
			zap.Error(err))
		jd = ""
	}

	r.logger.Info("candidate resolved",
		zap.String("candidate_id", candidate.ID),
		zap.String("interview_id", interview.ID))
	return Match{Candidate: candidate, Interview: interview, JobDescription: jd}, nil
}

// candidateFilter quotes the name so it matches literally.
func candidateFilter(name string) bson.M {
	return bson.M{
		"name":   bson.M{"$regex": "^" + regexp.QuoteMeta(name) + "$", "$options": "i"},
		"status": bson.M{"$in": candidateStatuses},
	}
}

func interviewFilter(candidateID string) bson.M {
	return bson.M{
		"candidate_id": candidateID,
		"status":       bson.M{"$in": interviewStatuses},
	}
}
