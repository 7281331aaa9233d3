package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	"github.com/noah-isme/sma-adp-allotment/pkg/response"
)

type registryService interface {
	Register(ctx context.Context, req dto.RegisterResourceRequest) (*models.Resource, error)
	Lookup(ctx context.Context, id string) (*models.Resource, error)
	ListByKind(ctx context.Context, kind string) ([]models.Resource, error)
	Rename(ctx context.Context, id string, req dto.RenameResourceRequest) (*models.Resource, error)
}

// ResourceHandler manages the bookable resource registry.
type ResourceHandler struct {
	service registryService
}

// NewResourceHandler constructs handler.
func NewResourceHandler(svc registryService) *ResourceHandler {
	return &ResourceHandler{service: svc}
}

// Register godoc
// @Summary Register a bookable resource
// @Description Registers a teacher, room/venue or class section. Ids are immutable.
// @Tags Resources
// @Accept json
// @Produce json
// @Param payload body dto.RegisterResourceRequest true "Resource"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Register(c *gin.Context) {
	var req dto.RegisterResourceRequest
	if !bindJSON(c, &req) {
		return
	}
	resource, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// List godoc
// @Summary List resources
// @Tags Resources
// @Produce json
// @Param kind query string false "TEACHER, ROOM or CLASS_SECTION"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	items, err := h.service.ListByKind(c.Request.Context(), c.Query("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := pageParams(c)
	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	response.JSON(c, http.StatusOK, items[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: len(items)})
}

// Get godoc
// @Summary Get resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	resource, err := h.service.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource, nil)
}

// Rename godoc
// @Summary Rename resource
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body dto.RenameResourceRequest true "Display name"
// @Success 200 {object} response.Envelope
// @Router /resources/{id} [patch]
func (h *ResourceHandler) Rename(c *gin.Context) {
	var req dto.RenameResourceRequest
	if !bindJSON(c, &req) {
		return
	}
	resource, err := h.service.Rename(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource, nil)
}
