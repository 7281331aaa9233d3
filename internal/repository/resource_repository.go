package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

const resourceColumns = `id, kind, display_name, version, created_at, updated_at`

// ResourceRepository persists the resource registry in PostgreSQL.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository creates a new resource repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts a resource; an existing id yields ErrDuplicateResource.
func (r *ResourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	now := time.Now().UTC()
	resource.CreatedAt = now
	resource.UpdatedAt = now
	resource.Version = 0

	const query = `INSERT INTO resources (id, kind, display_name, version, created_at, updated_at) VALUES (:id, :kind, :display_name, :version, :created_at, :updated_at) ON CONFLICT (id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, resource)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create resource rows affected: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrDuplicateResource
	}
	return nil
}

// FindByID loads a resource by id.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`
	var res models.Resource
	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		return nil, err
	}
	return &res, nil
}

// FindByIDs returns the registered subset of ids.
func (r *ResourceRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ANY($1)`
	var items []models.Resource
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find resources: %w", err)
	}
	return items, nil
}

// ListByKind returns resources in registration order; an empty kind lists all.
func (r *ResourceRepository) ListByKind(ctx context.Context, kind models.ResourceKind) ([]models.Resource, error) {
	var items []models.Resource
	if kind == "" {
		query := `SELECT ` + resourceColumns + ` FROM resources ORDER BY seq ASC`
		if err := r.db.SelectContext(ctx, &items, query); err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}
		return items, nil
	}
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE kind = $1 ORDER BY seq ASC`
	if err := r.db.SelectContext(ctx, &items, query, kind); err != nil {
		return nil, fmt.Errorf("list resources by kind: %w", err)
	}
	return items, nil
}

// UpdateDisplayName renames a resource; kind and id are never touched.
func (r *ResourceRepository) UpdateDisplayName(ctx context.Context, id, displayName string) (*models.Resource, error) {
	query := `UPDATE resources SET display_name = $2, updated_at = $3 WHERE id = $1 RETURNING ` + resourceColumns
	var res models.Resource
	if err := r.db.GetContext(ctx, &res, query, id, displayName, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &res, nil
}
