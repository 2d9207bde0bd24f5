package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/simkarya-api/internal/models"
)

const publicationColumns = `id, submission_id, title, abstract, authors, tags, published_by, published_at`

// PublicationRepository provides persistence for the public catalog.
type PublicationRepository struct {
	db *sqlx.DB
}

// NewPublicationRepository creates the repository.
func NewPublicationRepository(db *sqlx.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

// Create inserts a publication row.
func (r *PublicationRepository) Create(ctx context.Context, publication *models.Publication) error {
	if publication.ID == "" {
		publication.ID = uuid.NewString()
	}
	if publication.PublishedAt.IsZero() {
		publication.PublishedAt = time.Now().UTC()
	}
	const query = `INSERT INTO publications (` + publicationColumns + `)
VALUES (:id, :submission_id, :title, :abstract, :authors, :tags, :published_by, :published_at)`
	if _, err := r.db.NamedExecContext(ctx, query, publication); err != nil {
		return fmt.Errorf("create publication: %w", err)
	}
	return nil
}

// GetByID returns a publication by identifier.
func (r *PublicationRepository) GetByID(ctx context.Context, id string) (*models.Publication, error) {
	const query = `SELECT ` + publicationColumns + ` FROM publications WHERE id = $1 LIMIT 1`
	var publication models.Publication
	if err := r.db.GetContext(ctx, &publication, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get publication: %w", err)
	}
	return &publication, nil
}

// FindBySubmission returns the publication referencing a submission.
func (r *PublicationRepository) FindBySubmission(ctx context.Context, submissionID string) (*models.Publication, error) {
	const query = `SELECT ` + publicationColumns + ` FROM publications WHERE submission_id = $1 LIMIT 1`
	var publication models.Publication
	if err := r.db.GetContext(ctx, &publication, query, submissionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find publication by submission: %w", err)
	}
	return &publication, nil
}

// List returns catalog entries matching the filter with a total count.
func (r *PublicationRepository) List(ctx context.Context, filter models.PublicationFilter) ([]models.Publication, int, error) {
	baseQuery := `FROM publications WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(abstract) LIKE $%d OR LOWER(authors) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Tag != "" {
		// Tags are stored comma-separated; padding both sides makes the
		// membership check exact rather than a substring match.
		conditions = append(conditions, fmt.Sprintf("(',' || LOWER(tags) || ',') LIKE $%d", len(args)+1))
		args = append(args, "%,"+strings.ToLower(strings.TrimSpace(filter.Tag))+",%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY published_at DESC LIMIT %d OFFSET %d", publicationColumns, baseQuery, pageSize, offset)

	var publications []models.Publication
	if err := r.db.SelectContext(ctx, &publications, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list publications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count publications: %w", err)
	}

	return publications, total, nil
}

// Delete removes a publication (unpublish).
func (r *PublicationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM publications WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete publication: %w", err)
	}
	return nil
}
