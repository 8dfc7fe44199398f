package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
	"github.com/ruta-norte/fleet-compliance-api/pkg/export"
	"github.com/ruta-norte/fleet-compliance-api/pkg/jobs"
	"github.com/ruta-norte/fleet-compliance-api/pkg/storage"
)

type historyReconciler interface {
	Reconcile(ctx context.Context, companyID string, filter models.HistoryFilter, page models.HistoryPage) ([]models.HistoryItem, *models.Pagination, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Exports scan the full reconciled history, capped to keep a single job
// from holding the fleet's whole lifetime in memory.
const exportRowCap = 10000

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Workers   int
	Retries   int
}

// ExportService renders reconciled history to downloadable files. Jobs run
// on an in-memory queue; status is tracked per job until the result TTL
// cleanup discards the file.
type ExportService struct {
	history historyReconciler
	storage exportStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig

	queue *jobs.Queue

	mu      sync.RWMutex
	tracked map[string]*models.ExportJob
}

// NewExportService constructs an ExportService.
func NewExportService(history historyReconciler, store exportStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	s := &ExportService{
		history: history,
		storage: store,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		tracked: make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("history-export", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue registers a history export job and schedules it for rendering.
func (s *ExportService) Enqueue(ctx context.Context, format models.ExportFormat, filter models.HistoryFilter, claims *models.JWTClaims) (*models.ExportJob, error) {
	if claims == nil || claims.CompanyID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		CompanyID:   claims.CompanyID,
		RequestedBy: claims.UserID,
		Format:      format,
		Filter:      filter,
		Status:      models.ExportStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.tracked[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "history-export"}); err != nil {
		s.mu.Lock()
		delete(s.tracked, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	s.logger.Info("history export enqueued",
		zap.String("job_id", job.ID),
		zap.String("company_id", job.CompanyID),
		zap.String("format", string(format)))

	return s.snapshot(job.ID), nil
}

// Status returns the current state of an export job.
func (s *ExportService) Status(jobID string, claims *models.JWTClaims) (*models.ExportJob, error) {
	job := s.snapshot(jobID)
	if job == nil || (claims != nil && job.CompanyID != claims.CompanyID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// Open resolves a signed download token to the stored file.
func (s *ExportService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

// Cleanup removes export files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) process(ctx context.Context, queued jobs.Job) error {
	job := s.snapshot(queued.ID)
	if job == nil {
		return fmt.Errorf("export job %s no longer tracked", queued.ID)
	}
	s.update(job.ID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusRunning
	})

	items, _, err := s.history.Reconcile(ctx, job.CompanyID, job.Filter, models.HistoryPage{Page: 1, PageSize: exportRowCap})
	if err != nil {
		return s.fail(job.ID, err)
	}

	dataset := buildHistoryDataset(items)
	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Fleet Inspection History")
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return s.fail(job.ID, err)
	}

	filename := fmt.Sprintf("history_%s_%s.%s",
		sanitizeFilename(job.CompanyID),
		time.Now().UTC().Format("20060102_150405"),
		job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return s.fail(job.ID, err)
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return s.fail(job.ID, err)
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	now := time.Now().UTC()
	s.update(job.ID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusCompleted
		j.RelativePath = relPath
		j.DownloadURL = fmt.Sprintf("%s/history/export/%s", prefix, token)
		j.ExpiresAt = &expiresAt
		j.CompletedAt = &now
	})

	s.logger.Info("history export completed",
		zap.String("job_id", job.ID),
		zap.Int("rows", len(items)),
		zap.String("path", relPath))
	return nil
}

func (s *ExportService) fail(jobID string, err error) error {
	s.update(jobID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusFailed
		j.Error = err.Error()
	})
	return err
}

func (s *ExportService) update(jobID string, apply func(*models.ExportJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.tracked[jobID]; ok {
		apply(job)
	}
}

func (s *ExportService) snapshot(jobID string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.tracked[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func buildHistoryDataset(items []models.HistoryItem) export.Dataset {
	headers := []string{"Date", "Kind", "Plate", "Conductor", "Review Status", "Reviewer", "Notes"}
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		review := item.Review()
		reviewer := ""
		if review.ReviewerName != nil {
			reviewer = *review.ReviewerName
		}
		rows = append(rows, map[string]string{
			"Date":          item.Timestamp().Format("02/01/2006 15:04"),
			"Kind":          string(item.Kind),
			"Plate":         item.Plate(),
			"Conductor":     item.ActorName(),
			"Review Status": string(review.Status),
			"Reviewer":      reviewer,
			"Notes":         review.DisplayNote(),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
