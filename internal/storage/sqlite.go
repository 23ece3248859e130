package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/interview-agent/internal/transcript"
)

const (
	SummaryPending   = "pending"
	SummaryRunning   = "running"
	SummaryCompleted = "completed"
	SummaryFailed    = "failed"
)

var ErrNotFound = errors.New("transcript not found")

// Interview is the listing row for a stored transcript.
type Interview struct {
	InterviewID    string    `json:"interview_id"`
	CandidateID    string    `json:"candidate_id"`
	JobDescription string    `json:"job_description"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	EndReason      string    `json:"end_reason"`
	TranscriptPath string    `json:"transcript_path"`
	RecordingPath  string    `json:"recording_path"`
	EntryCount     int       `json:"entry_count"`
	Summary        string    `json:"summary"`
	SummaryStatus  string    `json:"summary_status"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "interviews.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			interview_id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL DEFAULT '',
			job_description TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			end_reason TEXT NOT NULL DEFAULT '',
			transcript_path TEXT NOT NULL DEFAULT '',
			recording_path TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			summary_status TEXT NOT NULL DEFAULT 'pending',
			record_json TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create transcripts table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcript_entries (
			interview_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY(interview_id, seq),
			FOREIGN KEY(interview_id) REFERENCES transcripts(interview_id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create transcript_entries table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS summary_requests (
			interview_id TEXT NOT NULL,
			prompt_hash TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(interview_id, prompt_hash)
		);
	`); err != nil {
		return fmt.Errorf("create summary_requests table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_transcripts_started_at ON transcripts(started_at)"); err != nil {
		return fmt.Errorf("create transcripts index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// SaveRecord stores a finished interview. The first write for an interview
// id wins; later calls report created=false and change nothing.
func (s *SQLiteStore) SaveRecord(ctx context.Context, rec transcript.Record, transcriptPath string) (bool, error) {
	if strings.TrimSpace(rec.InterviewID) == "" {
		return false, errors.New("interview id is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record %s: %w", rec.InterviewID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin save %s: %w", rec.InterviewID, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO transcripts(
			interview_id, candidate_id, job_description, started_at, ended_at,
			end_reason, transcript_path, recording_path, summary_status, record_json
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.InterviewID,
		rec.CandidateID,
		rec.JobDescription,
		formatTime(rec.StartedAt),
		formatTime(rec.EndedAt),
		rec.EndReason,
		transcriptPath,
		rec.RecordingPath,
		SummaryPending,
		string(payload),
	)
	if err != nil {
		return false, fmt.Errorf("insert transcript %s: %w", rec.InterviewID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save transcript rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_entries(interview_id, seq, timestamp, speaker, text) VALUES(?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return false, fmt.Errorf("prepare entry insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range rec.Transcript {
		if _, err := stmt.ExecContext(ctx, rec.InterviewID, i, formatTime(e.Timestamp), string(e.Speaker), e.Text); err != nil {
			return false, fmt.Errorf("insert entry %d for %s: %w", i, rec.InterviewID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transcript %s: %w", rec.InterviewID, err)
	}
	return true, nil
}

// GetRecord rebuilds a stored record; the transcript comes from the entry rows.
func (s *SQLiteStore) GetRecord(ctx context.Context, interviewID string) (transcript.Record, string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record_json, transcript_path FROM transcripts WHERE interview_id = ?`,
		interviewID,
	)

	var payload, path string
	if err := row.Scan(&payload, &path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transcript.Record{}, "", fmt.Errorf("get transcript %s: %w", interviewID, ErrNotFound)
		}
		return transcript.Record{}, "", fmt.Errorf("get transcript %s: %w", interviewID, err)
	}

	var rec transcript.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return transcript.Record{}, "", fmt.Errorf("decode transcript %s: %w", interviewID, err)
	}

	entries, err := s.GetEntries(ctx, interviewID)
	if err != nil {
		return transcript.Record{}, "", err
	}
	rec.Transcript = entries

	return rec, path, nil
}

func (s *SQLiteStore) GetEntries(ctx context.Context, interviewID string) ([]transcript.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, speaker, text
		 FROM transcript_entries
		 WHERE interview_id = ?
		 ORDER BY seq ASC`,
		interviewID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries for %s: %w", interviewID, err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]transcript.Entry, 0, 32)
	for rows.Next() {
		var e transcript.Entry
		var ts, speaker string
		if err := rows.Scan(&ts, &speaker, &e.Text); err != nil {
			return nil, fmt.Errorf("scan entry for %s: %w", interviewID, err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse entry timestamp for %s: %w", interviewID, err)
		}
		e.Timestamp = parsed
		e.Speaker = transcript.Speaker(speaker)
		if !e.Speaker.Valid() {
			return nil, fmt.Errorf("entry for %s has unknown speaker %q", interviewID, speaker)
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows for %s: %w", interviewID, err)
	}

	return entries, nil
}

func (s *SQLiteStore) GetInterview(ctx context.Context, interviewID string) (Interview, error) {
	rows, err := s.db.QueryContext(ctx, interviewSelect+` WHERE t.interview_id = ? GROUP BY t.interview_id`, interviewID)
	if err != nil {
		return Interview{}, fmt.Errorf("query interview %s: %w", interviewID, err)
	}
	defer func() { _ = rows.Close() }()

	list, err := scanInterviews(rows)
	if err != nil {
		return Interview{}, err
	}
	if len(list) == 0 {
		return Interview{}, fmt.Errorf("get interview %s: %w", interviewID, ErrNotFound)
	}
	return list[0], nil
}

func (s *SQLiteStore) ListInterviews(ctx context.Context, date string) ([]Interview, error) {
	rows, err := s.db.QueryContext(ctx,
		interviewSelect+`
		 WHERE substr(t.started_at, 1, 10) = ?
		 GROUP BY t.interview_id
		 ORDER BY t.started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query interviews by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	return scanInterviews(rows)
}

func (s *SQLiteStore) GetDates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM transcripts ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) UpdateSummary(ctx context.Context, interviewID, summary, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcripts SET summary = ?, summary_status = ? WHERE interview_id = ?`,
		summary,
		status,
		interviewID,
	)
	if err != nil {
		return fmt.Errorf("update summary for %s: %w", interviewID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update summary rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update summary for %s: %w", interviewID, ErrNotFound)
	}

	return nil
}

func (s *SQLiteStore) ClaimSummaryRequest(ctx context.Context, interviewID, promptHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO summary_requests(interview_id, prompt_hash) VALUES(?, ?)`,
		interviewID,
		promptHash,
	)
	if err != nil {
		return false, fmt.Errorf("claim summary request for %s: %w", interviewID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim summary rows affected: %w", err)
	}

	return rows > 0, nil
}

const interviewSelect = `SELECT t.interview_id, t.candidate_id, t.job_description, t.started_at, t.ended_at,
	t.end_reason, t.transcript_path, t.recording_path, t.summary, t.summary_status, COUNT(e.seq)
	FROM transcripts t
	LEFT JOIN transcript_entries e ON e.interview_id = t.interview_id`

func scanInterviews(rows *sql.Rows) ([]Interview, error) {
	list := make([]Interview, 0, 16)
	for rows.Next() {
		var iv Interview
		var startedAt, endedAt string
		if err := rows.Scan(
			&iv.InterviewID, &iv.CandidateID, &iv.JobDescription, &startedAt, &endedAt,
			&iv.EndReason, &iv.TranscriptPath, &iv.RecordingPath, &iv.Summary, &iv.SummaryStatus, &iv.EntryCount,
		); err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}

		parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		iv.StartedAt = parsedStart

		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		iv.EndedAt = parsedEnd

		list = append(list, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interview rows: %w", err)
	}

	return list, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
