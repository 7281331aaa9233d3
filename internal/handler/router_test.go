package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-allotment/internal/middleware"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	"github.com/noah-isme/sma-adp-allotment/internal/repository"
	"github.com/noah-isme/sma-adp-allotment/internal/service"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := service.NewRegistryService(repository.NewMemoryResourceRepository(), nil, zap.NewNop())
	ledger := repository.NewMemoryLedgerRepository()
	allotments := service.NewAllotmentService(ledger, registry, service.AllotmentOptions{}, nil, zap.NewNop())
	planner := service.NewPlannerService(allotments, registry, nil, zap.NewNop())
	views := service.NewScheduleViewService(ledger, registry, nil, service.ScheduleViewConfig{}, zap.NewNop())

	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	RegisterRoutes(r.Group("/api/v1"), staticTokens{
		"admin":   {UserID: "u-admin", Role: models.RoleAdmin},
		"teacher": {UserID: "u-teacher", Role: models.RoleTeacher},
		"student": {UserID: "u-student", Role: models.RoleStudent},
	}, Handlers{
		Resources:  NewResourceHandler(registry),
		Allotments: NewAllotmentHandler(allotments),
		Planner:    NewPlannerHandler(planner),
		Schedules:  NewScheduleHandler(views),
	})
	return r
}

func call(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedResources(t *testing.T, r *gin.Engine) {
	t.Helper()
	for _, body := range []string{
		`{"id":"T1","kind":"TEACHER","displayName":"Bu Sari"}`,
		`{"id":"R1","kind":"ROOM","displayName":"Lab 1"}`,
		`{"id":"8A","kind":"CLASS_SECTION","displayName":"Class 8A"}`,
	} {
		w := call(r, http.MethodPost, "/api/v1/resources", "admin", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestRouterRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	w := call(r, http.MethodGet, "/api/v1/resources", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(r, http.MethodGet, "/api/v1/resources", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterRoleChecks(t *testing.T) {
	r := newTestRouter(t)

	w := call(r, http.MethodPost, "/api/v1/resources", "teacher", `{"id":"R2","kind":"ROOM","displayName":"Lab 2"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, http.MethodPost, "/api/v1/allotments", "student", `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, http.MethodGet, "/api/v1/resources", "student", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterAllotmentFlow(t *testing.T) {
	r := newTestRouter(t)
	seedResources(t, r)

	w := call(r, http.MethodPost, "/api/v1/planner/teacher-allocations", "teacher",
		`{"teacherId":"T1","roomId":"R1","classSectionId":"8A","date":"2024-07-01","start":"10:00","end":"11:00","subject":"Math"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var math models.Booking
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &math))

	w = call(r, http.MethodPost, "/api/v1/allotments", "teacher",
		`{"resourceIds":["R1"],"interval":{"date":"2024-07-01","start":"10:30","end":"11:30"},"purpose":"Club"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "ALLOTMENT_CONFLICT", env.Error.Code)
	var rejected struct {
		Conflicts []models.Booking `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rejected))
	require.Len(t, rejected.Conflicts, 1)
	assert.Equal(t, math.ID, rejected.Conflicts[0].ID)

	w = call(r, http.MethodPost, "/api/v1/allotments", "teacher",
		`{"resourceIds":["R1"],"interval":{"date":"2024-07-01","start":"11:00","end":"12:00"},"purpose":"Club"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(r, http.MethodGet, "/api/v1/resources/R1/schedule?from=2024-07-01", "student", "")
	require.Equal(t, http.StatusOK, w.Code)
	var schedule []models.Booking
	env = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &schedule))
	require.Len(t, schedule, 2)
	assert.Equal(t, "Math", schedule[0].Purpose)
	assert.Equal(t, "Club", schedule[1].Purpose)
	assert.EqualValues(t, 1, env.Meta["days"])

	w = call(r, http.MethodDelete, "/api/v1/allotments/"+math.ID, "teacher", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = call(r, http.MethodDelete, "/api/v1/allotments/"+math.ID, "teacher", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = call(r, http.MethodPost, "/api/v1/allotments", "teacher",
		`{"resourceIds":["R1"],"interval":{"date":"2024-07-01","start":"10:30","end":"11:00"},"purpose":"Club prep"}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRouterUnknownResource(t *testing.T) {
	r := newTestRouter(t)
	seedResources(t, r)

	w := call(r, http.MethodPost, "/api/v1/allotments", "admin",
		`{"resourceIds":["R1","R9"],"interval":{"date":"2024-07-01","start":"10:00","end":"11:00"},"purpose":"Exam"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"missing":["R9"]}`, string(decodeEnvelope(t, w).Data))
}

func TestRouterInvalidInterval(t *testing.T) {
	r := newTestRouter(t)
	seedResources(t, r)

	w := call(r, http.MethodPost, "/api/v1/allotments", "admin",
		`{"resourceIds":["R1"],"interval":{"date":"2024-07-01","start":"11:00","end":"10:00"},"purpose":"Exam"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INTERVAL", decodeEnvelope(t, w).Error.Code)
}

func TestRouterScheduleExport(t *testing.T) {
	r := newTestRouter(t)
	seedResources(t, r)

	w := call(r, http.MethodPost, "/api/v1/allotments", "admin",
		`{"resourceIds":["R1","8A"],"interval":{"date":"2024-07-02","start":"08:00","end":"09:30"},"purpose":"Physics"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(r, http.MethodGet, "/api/v1/resources/R1/schedule/export?from=2024-07-01&to=2024-07-07&format=csv", "admin", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "schedule_R1_2024-07-01_2024-07-07.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-07-02,Tuesday,08:00,09:30,Physics,GENERAL,R1 8A", lines[1])

	w = call(r, http.MethodGet, "/api/v1/resources/R1/schedule/export?from=2024-07-01&format=xlsx", "admin", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterWeekAndUtilization(t *testing.T) {
	r := newTestRouter(t)
	seedResources(t, r)

	w := call(r, http.MethodPost, "/api/v1/allotments", "admin",
		`{"resourceIds":["T1"],"interval":{"date":"2024-07-03","start":"07:00","end":"09:00"},"purpose":"Bio"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(r, http.MethodGet, "/api/v1/resources/T1/schedule/week?date=2024-07-04", "admin", "")
	require.Equal(t, http.StatusOK, w.Code)
	var week models.WeekSchedule
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &week))
	require.Len(t, week.Days, 7)
	assert.Equal(t, "Monday", week.Days[0].Weekday)
	assert.Len(t, week.Days[2].Bookings, 1)

	w = call(r, http.MethodGet, "/api/v1/resources/T1/utilization?from=2024-07-03", "admin", "")
	require.Equal(t, http.StatusOK, w.Code)
	var util models.Utilization
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &util))
	assert.Equal(t, 120, util.BookedMinutes)
	assert.Equal(t, 600, util.TotalAvailableMinutes)

	w = call(r, http.MethodGet, "/api/v1/resources/T1/schedule/day?date=07/03/2024", "admin", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
