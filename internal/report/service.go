package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/storage"
)

// Table is the records table the service inserts into and reads from.
// *platform.Client satisfies it.
type Table interface {
	InsertRecord(ctx context.Context, row InsertRow) (*Record, error)
	SelectRecords(ctx context.Context, userID string) ([]Record, error)
}

// Evidence is one captured file staged on local disk, to be moved into
// object storage.
type Evidence struct {
	TempPath     string
	OriginalName string
	ContentType  string
}

// Submission is a fully validated request, ready to persist.
type Submission struct {
	UserID    string
	Category  Category
	Text      *string
	Latitude  float64
	Longitude float64
	Address   *string
	Image     Evidence
	Audio     *Evidence
}

// Service persists accepted submissions: evidence files into object
// storage, then exactly one row into the records table.
type Service struct {
	table   Table
	objects storage.Driver
	logger  *logger.Logger
}

func NewService(table Table, objects storage.Driver, logger *logger.Logger) *Service {
	return &Service{table: table, objects: objects, logger: logger}
}

// Persist uploads the image, then the audio if present, then inserts the
// record. Any storage failure aborts before the table insert so a row is
// never written with missing evidence. A table insert failure after the
// uploads leaves orphaned objects behind; that gap is logged here and
// closed by the cleanup sweeper, not by a compensating delete.
func (s *Service) Persist(ctx context.Context, sub Submission) (*Record, error) {
	log := s.logger.WithContext(ctx).WithComponent("report-service")

	imageKey := ObjectKey("images", sub.Image.OriginalName)
	if err := s.uploadEvidence(ctx, imageKey, sub.Image); err != nil {
		return nil, fmt.Errorf("image upload: %w", err)
	}

	row := InsertRow{
		UserID:     sub.UserID,
		Category:   sub.Category,
		Department: DepartmentFor(sub.Category),
		Text:       sub.Text,
		ImageURL:   s.objects.PublicURL(imageKey),
		Latitude:   sub.Latitude,
		Longitude:  sub.Longitude,
		Address:    sub.Address,
	}

	if sub.Audio != nil {
		audioKey := ObjectKey("audio", sub.Audio.OriginalName)
		if err := s.uploadEvidence(ctx, audioKey, *sub.Audio); err != nil {
			// The image object is already in the bucket. Leave it for the
			// sweeper rather than risk deleting evidence on a flaky error.
			log.Warn("audio upload failed after image upload, orphaned object left behind",
				slog.String("image_key", imageKey),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("audio upload: %w", err)
		}
		audioURL := s.objects.PublicURL(audioKey)
		row.AudioURL = &audioURL
	}

	record, err := s.table.InsertRecord(ctx, row)
	if err != nil {
		log.Warn("record insert failed after uploads, orphaned objects left behind",
			slog.String("image_url", row.ImageURL),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("record insert: %w", err)
	}

	log.Info("record persisted",
		slog.String("record_id", record.ID),
		slog.String("category", string(record.Category)),
		slog.String("department", record.Department))

	return record, nil
}

// List returns the user's records, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Record, error) {
	return s.table.SelectRecords(ctx, userID)
}

func (s *Service) uploadEvidence(ctx context.Context, key string, ev Evidence) error {
	f, err := os.Open(ev.TempPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", ev.TempPath, err)
	}
	defer f.Close()

	return s.objects.Upload(ctx, key, ev.ContentType, f)
}
