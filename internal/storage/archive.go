package storage

import (
	"context"
	"fmt"

	"github.com/sjawhar/interview-agent/internal/transcript"
)

// Archive is the durable sink for finished interviews: a JSON snapshot on
// disk plus the SQLite row set used for listing and reload.
type Archive struct {
	store  *SQLiteStore
	writer *FileWriter
}

func NewArchive(store *SQLiteStore, writer *FileWriter) *Archive {
	return &Archive{store: store, writer: writer}
}

// Persist is idempotent per interview id. A repeated call returns the path
// of the first stored snapshot and writes nothing.
func (a *Archive) Persist(ctx context.Context, rec transcript.Record) (string, error) {
	if _, path, err := a.store.GetRecord(ctx, rec.InterviewID); err == nil {
		return path, nil
	}

	path, err := a.writer.Write(rec)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	created, err := a.store.SaveRecord(ctx, rec, path)
	if err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}
	if !created {
		_, stored, err := a.store.GetRecord(ctx, rec.InterviewID)
		if err != nil {
			return "", err
		}
		return stored, nil
	}
	return path, nil
}

func (a *Archive) Lookup(ctx context.Context, interviewID string) (transcript.Record, string, error) {
	return a.store.GetRecord(ctx, interviewID)
}
