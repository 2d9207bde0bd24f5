package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/simkarya-api/internal/models"
	"github.com/noah-isme/simkarya-api/pkg/export"
	"github.com/noah-isme/simkarya-api/pkg/storage"
)

type catalogLister interface {
	ListAll(ctx context.Context, search, tag string) ([]models.Publication, error)
}

type fileStorage interface {
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

// CatalogExporterConfig tunes export rendering behaviour.
type CatalogExporterConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// CatalogExporter renders the publication catalog into downloadable files.
type CatalogExporter struct {
	catalog catalogLister
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     CatalogExporterConfig
}

// NewCatalogExporter constructs a CatalogExporter.
func NewCatalogExporter(catalog catalogLister, store fileStorage, signer *storage.SignedURLSigner, cfg CatalogExporterConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *CatalogExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &CatalogExporter{
		catalog: catalog,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the catalog dataset for the job and stores the rendered export.
func (e *CatalogExporter) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := e.buildDataset(ctx, job.Params)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = e.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = e.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := e.buildFilename(job)
	relPath, err := e.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := e.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(e.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/exports/download?token=%s", prefix, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (e *CatalogExporter) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return e.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (e *CatalogExporter) Open(relPath string) (*os.File, error) {
	return e.storage.Open(relPath)
}

// Delete removes a stored export file.
func (e *CatalogExporter) Delete(relPath string) error {
	return e.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (e *CatalogExporter) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = e.cfg.ResultTTL
	}
	return e.storage.CleanupOlderThan(ttl)
}

func (e *CatalogExporter) buildDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	publications, err := e.catalog.ListAll(ctx, params.Search, params.Tag)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(publications))
	for _, pub := range publications {
		rows = append(rows, map[string]string{
			"Title":        pub.Title,
			"Authors":      strings.Join(pub.Authors, ", "),
			"Tags":         strings.Join(pub.Tags, ", "),
			"Published At": pub.PublishedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Title", "Authors", "Tags", "Published At"},
		Rows:    rows,
	}
	title := "Publication Catalog"
	if params.Tag != "" {
		title = fmt.Sprintf("Publication Catalog (%s)", params.Tag)
	}
	return dataset, title, nil
}

func (e *CatalogExporter) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.Tag != "" {
		scope = sanitizeFilename(job.Params.Tag)
	}
	return fmt.Sprintf("catalog_%s_%s.%s", scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
