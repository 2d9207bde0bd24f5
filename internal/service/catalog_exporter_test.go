package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/simkarya-api/internal/models"
	"github.com/noah-isme/simkarya-api/pkg/export"
	"github.com/noah-isme/simkarya-api/pkg/storage"
)

type catalogStub struct{}

func (catalogStub) ListAll(ctx context.Context, search, tag string) ([]models.Publication, error) {
	return []models.Publication{
		{
			ID:          "pub-1",
			Title:       "Queueing Behaviour In Campus Networks",
			Authors:     models.CSVField{"A. Rahman", "B. Sari"},
			Tags:        models.CSVField{"networking"},
			PublishedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			ID:          "pub-2",
			Title:       "Composting Urban Food Waste",
			Authors:     models.CSVField{"C. Wijaya"},
			Tags:        models.CSVField{"environment", "chemistry"},
			PublishedAt: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		},
	}, nil
}

func newCatalogExporterForTest(t *testing.T) (*CatalogExporter, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := CatalogExporterConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	exporter := NewCatalogExporter(catalogStub{}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return exporter, store
}

func TestCatalogExporterGenerateCSV(t *testing.T) {
	exporter, store := newCatalogExporterForTest(t)
	job := &models.ExportJob{
		ID:        "job-1",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		CreatedBy: "staff-1",
	}
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	require.Contains(t, result.URL, "/exports/download?token=")

	path := store.Path(result.RelativePath)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestCatalogExporterGeneratePDF(t *testing.T) {
	exporter, store := newCatalogExporterForTest(t)
	job := &models.ExportJob{
		ID:        "job-2",
		Params:    models.ExportJobParams{Format: models.ExportFormatPDF, Tag: "environment"},
		CreatedBy: "staff-1",
	}
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)

	path := store.Path(result.RelativePath)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestCatalogExporterRejectsUnknownFormat(t *testing.T) {
	exporter, _ := newCatalogExporterForTest(t)
	job := &models.ExportJob{
		ID:        "job-3",
		Params:    models.ExportJobParams{Format: models.ExportFormat("xlsx")},
		CreatedBy: "staff-1",
	}
	_, err := exporter.Generate(context.Background(), job)
	require.Error(t, err)
}

func TestCatalogExporterTokenRoundTrip(t *testing.T) {
	exporter, _ := newCatalogExporterForTest(t)
	job := &models.ExportJob{
		ID:        "job-4",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		CreatedBy: "staff-1",
	}
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)

	jobID, relPath, _, err := exporter.ParseToken(result.Token, false)
	require.NoError(t, err)
	require.Equal(t, job.ID, jobID)
	require.Equal(t, result.RelativePath, relPath)
}
