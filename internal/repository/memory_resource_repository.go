package repository

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

// MemoryResourceRepository keeps the resource registry in process memory.
type MemoryResourceRepository struct {
	mu    sync.RWMutex
	items map[string]models.Resource
	order []string
	now   func() time.Time
}

// NewMemoryResourceRepository builds an empty registry store.
func NewMemoryResourceRepository() *MemoryResourceRepository {
	return &MemoryResourceRepository{
		items: make(map[string]models.Resource),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new resource, failing on duplicate ids.
func (r *MemoryResourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[resource.ID]; exists {
		return appErrors.ErrDuplicateResource
	}
	now := r.now()
	resource.CreatedAt = now
	resource.UpdatedAt = now
	r.items[resource.ID] = *resource
	r.order = append(r.order, resource.ID)
	return nil
}

// FindByID returns sql.ErrNoRows for unknown ids.
func (r *MemoryResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &res, nil
}

// FindByIDs returns the subset of ids that are registered.
func (r *MemoryResourceRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := make([]models.Resource, 0, len(ids))
	for _, id := range ids {
		if res, ok := r.items[id]; ok {
			found = append(found, res)
		}
	}
	return found, nil
}

// ListByKind returns resources of a kind in registration order. An empty kind lists everything.
func (r *MemoryResourceRepository) ListByKind(ctx context.Context, kind models.ResourceKind) ([]models.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Resource, 0)
	for _, id := range r.order {
		res := r.items[id]
		if kind == "" || res.Kind == kind {
			out = append(out, res)
		}
	}
	return out, nil
}

// UpdateDisplayName renames a resource.
func (r *MemoryResourceRepository) UpdateDisplayName(ctx context.Context, id, displayName string) (*models.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	res.DisplayName = displayName
	res.UpdatedAt = r.now()
	r.items[id] = res
	return &res, nil
}
