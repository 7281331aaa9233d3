package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

type registryServiceMock struct {
	resource   *models.Resource
	list       []models.Resource
	err        error
	lastKind   string
	lastRename dto.RenameResourceRequest
}

func (m *registryServiceMock) Register(ctx context.Context, req dto.RegisterResourceRequest) (*models.Resource, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Resource{ID: req.ID, Kind: models.ResourceKind(req.Kind), DisplayName: req.DisplayName}, nil
}

func (m *registryServiceMock) Lookup(ctx context.Context, id string) (*models.Resource, error) {
	return m.resource, m.err
}

func (m *registryServiceMock) ListByKind(ctx context.Context, kind string) ([]models.Resource, error) {
	m.lastKind = kind
	return m.list, m.err
}

func (m *registryServiceMock) Rename(ctx context.Context, id string, req dto.RenameResourceRequest) (*models.Resource, error) {
	m.lastRename = req
	return m.resource, m.err
}

func TestResourceHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResourceHandler(&registryServiceMock{})

	payload, _ := json.Marshal(dto.RegisterResourceRequest{ID: "R1", Kind: "ROOM", DisplayName: "Room 101"})
	c, w := newGinContext(http.MethodPost, "/resources", payload)
	handler.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	var resource models.Resource
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &resource))
	assert.Equal(t, "R1", resource.ID)
	assert.Equal(t, models.ResourceRoom, resource.Kind)
}

func TestResourceHandlerRegisterDuplicate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResourceHandler(&registryServiceMock{err: appErrors.Clone(appErrors.ErrDuplicateResource, "resource R1 already registered")})

	payload, _ := json.Marshal(dto.RegisterResourceRequest{ID: "R1", Kind: "ROOM", DisplayName: "Room 101"})
	c, w := newGinContext(http.MethodPost, "/resources", payload)
	handler.Register(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_RESOURCE", decodeEnvelope(t, w).Error.Code)
}

func TestResourceHandlerListPaginates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	items := make([]models.Resource, 0, 5)
	for i := 1; i <= 5; i++ {
		items = append(items, models.Resource{ID: fmt.Sprintf("T%d", i), Kind: models.ResourceTeacher})
	}
	mockSvc := &registryServiceMock{list: items}
	handler := NewResourceHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/resources?kind=TEACHER&page=2&limit=2", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TEACHER", mockSvc.lastKind)
	env := decodeEnvelope(t, w)
	var page []models.Resource
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page, 2)
	assert.Equal(t, "T3", page[0].ID)
	assert.Equal(t, "T4", page[1].ID)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 5, env.Pagination.TotalCount)
	assert.Equal(t, 2, env.Pagination.Page)
}

func TestResourceHandlerListPastLastPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResourceHandler(&registryServiceMock{list: []models.Resource{{ID: "R1"}}})

	c, w := newGinContext(http.MethodGet, "/resources?page=9", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, w).Data))
}

func TestResourceHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewResourceHandler(&registryServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "resource X not found")})

	c, w := newGinContext(http.MethodGet, "/resources/X", nil)
	c.Params = gin.Params{{Key: "id", Value: "X"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResourceHandlerRename(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registryServiceMock{resource: &models.Resource{ID: "R1", Kind: models.ResourceRoom, DisplayName: "Lab"}}
	handler := NewResourceHandler(mockSvc)

	c, w := newGinContext(http.MethodPatch, "/resources/R1", []byte(`{"displayName":"Lab"}`))
	c.Params = gin.Params{{Key: "id", Value: "R1"}}
	handler.Rename(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Lab", mockSvc.lastRename.DisplayName)
}
