package gdrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/sjawhar/interview-agent/internal/transcript"
)

type fileService interface {
	create(ctx context.Context, meta *drive.File, media io.Reader) (string, error)
	update(ctx context.Context, fileID string, media io.Reader) error
}

type driveFiles struct {
	svc *drive.Service
}

func (d driveFiles) create(ctx context.Context, meta *drive.File, media io.Reader) (string, error) {
	f, err := d.svc.Files.Create(meta).Media(media).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

func (d driveFiles) update(ctx context.Context, fileID string, media io.Reader) error {
	_, err := d.svc.Files.Update(fileID, &drive.File{}).Media(media).Context(ctx).Do()
	return err
}

// Uploader copies persisted interview transcripts into a Drive folder: the
// JSON snapshot as-is and a readable Google Doc rendered from markdown.
type Uploader struct {
	files    fileService
	folderID string
	logger   *zap.Logger

	mu      sync.Mutex
	fileIDs map[string]string
}

func NewUploader(ctx context.Context, credPath, folderID string, logger *zap.Logger) (*Uploader, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newUploader(driveFiles{svc: svc}, folderID, logger), nil
}

func newUploader(files fileService, folderID string, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{files: files, folderID: folderID, logger: logger, fileIDs: make(map[string]string)}
}

// Upload creates name in the folder, or replaces its content when this
// uploader already created it.
func (u *Uploader) Upload(ctx context.Context, name, mimeType string, media io.Reader) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if fileID, ok := u.fileIDs[name]; ok {
		if err := u.files.update(ctx, fileID, media); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	id, err := u.files.create(ctx, &drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{u.folderID},
	}, media)
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	u.fileIDs[name] = id
	return nil
}

func (u *Uploader) UploadRecord(ctx context.Context, rec transcript.Record, snapshotPath string) error {
	f, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", snapshotPath, err)
	}
	defer func() { _ = f.Close() }()

	if err := u.Upload(ctx, rec.InterviewID+"_transcript.json", "application/json", f); err != nil {
		return err
	}

	doc := fmt.Sprintf("interview-%s-%s", rec.StartedAt.UTC().Format("2006-01-02"), rec.InterviewID)
	return u.Upload(ctx, doc, "application/vnd.google-apps.document", strings.NewReader(rec.FormatMarkdown()))
}

// OnPersisted uploads as a post-persist hook.
func (u *Uploader) OnPersisted(ctx context.Context, rec transcript.Record, path string) {
	if err := u.UploadRecord(ctx, rec, path); err != nil {
		u.logger.Error("drive upload failed", zap.String("interview_id", rec.InterviewID), zap.Error(err))
		return
	}
	u.logger.Info("transcript uploaded to drive", zap.String("interview_id", rec.InterviewID))
}
