package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lab-reports/config"
	"lab-reports/storage"
)

// ExportService schreibt periodisch einen Snapshot aller angereicherten
// Reports als gzip-komprimiertes JSON in den Backup-Bucket.
type ExportService struct {
	Config   *config.Config
	DB       *gorm.DB
	S3Client *s3.Client
	Logger   *zap.Logger
	Reports  *ReportService
}

// NewExportService erstellt eine neue Instanz des ExportService.
func NewExportService(cfg *config.Config, db *gorm.DB, s3Client *s3.Client, logger *zap.Logger) *ExportService {
	return &ExportService{
		Config:   cfg,
		DB:       db,
		S3Client: s3Client,
		Logger:   logger,
		Reports:  NewReportService(db, logger),
	}
}

// Run erzeugt den Snapshot und lädt ihn hoch. Gibt den S3-Link zurück.
func (e *ExportService) Run(ctx context.Context) (string, error) {
	reports, err := e.Reports.List()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(reports)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}

	key := fmt.Sprintf("reports-%s.json.gz", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	link, err := storage.UploadFile(ctx, e.S3Client, e.Config.BackupS3Bucket, key, buf.Bytes(), e.Config)
	if err != nil {
		return "", err
	}

	e.Logger.Info("Report snapshot exported",
		zap.Int("report_count", len(reports)),
		zap.String("s3_link", link))
	return link, nil
}
