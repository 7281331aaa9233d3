package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

// ResourceRepository persists registered resources.
type ResourceRepository interface {
	Create(ctx context.Context, resource *models.Resource) error
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Resource, error)
	ListByKind(ctx context.Context, kind models.ResourceKind) ([]models.Resource, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) (*models.Resource, error)
}

// RegistryService manages bookable resource identity. It holds no bookings.
type RegistryService struct {
	repo      ResourceRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistryService instantiates RegistryService.
func NewRegistryService(repo ResourceRepository, validate *validator.Validate, logger *zap.Logger) *RegistryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{repo: repo, validator: validate, logger: logger}
}

// Register adds a resource. Re-registering an id fails with DUPLICATE_RESOURCE.
func (s *RegistryService) Register(ctx context.Context, req dto.RegisterResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	kind, ok := models.ParseResourceKind(req.Kind)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be one of "+models.KindList())
	}

	resource := &models.Resource{
		ID:          strings.TrimSpace(req.ID),
		Kind:        kind,
		DisplayName: strings.TrimSpace(req.DisplayName),
	}
	if err := s.repo.Create(ctx, resource); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateResource) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateResource, "resource "+resource.ID+" already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register resource")
	}
	s.logger.Info("resource registered", zap.String("resource_id", resource.ID), zap.String("kind", string(kind)))
	return resource, nil
}

// Lookup returns a registered resource or NOT_FOUND.
func (s *RegistryService) Lookup(ctx context.Context, id string) (*models.Resource, error) {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return resource, nil
}

// ListByKind lists resources of a kind in registration order. An empty kind lists all resources.
func (s *RegistryService) ListByKind(ctx context.Context, rawKind string) ([]models.Resource, error) {
	var kind models.ResourceKind
	if strings.TrimSpace(rawKind) != "" {
		parsed, ok := models.ParseResourceKind(rawKind)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown resource kind")
		}
		kind = parsed
	}
	items, err := s.repo.ListByKind(ctx, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	return items, nil
}

// Rename changes a resource's display name.
func (s *RegistryService) Rename(ctx context.Context, id string, req dto.RenameResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	resource, err := s.repo.UpdateDisplayName(ctx, id, strings.TrimSpace(req.DisplayName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename resource")
	}
	return resource, nil
}

// Resolve returns the registered resources for ids, failing with UNKNOWN_RESOURCE listing every missing id.
func (s *RegistryService) Resolve(ctx context.Context, ids []string) (map[string]models.Resource, error) {
	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve resources")
	}
	byID := make(map[string]models.Resource, len(found))
	for _, res := range found {
		byID[res.ID] = res
	}
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Wrap(&models.UnknownResourcesError{Missing: missing}, appErrors.ErrUnknownResource.Code, appErrors.ErrUnknownResource.Status, "unknown resources: "+strings.Join(missing, ", "))
	}
	return byID, nil
}
