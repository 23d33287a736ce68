package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/cache"
	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/ports/inbound"
	"github.com/mealsmith/v2/pkg/healthcheck"

	apperrors "github.com/mealsmith/v2/pkg/errors"
)

// MockPlannerService is a mock implementation of the planner port
type MockPlannerService struct {
	mock.Mock
}

func (m *MockPlannerService) GeneratePlan(ctx context.Context, cmd inbound.GeneratePlanCommand) (*inbound.MealPlanDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inbound.MealPlanDTO), args.Error(1)
}

func (m *MockPlannerService) PreviewTargets(ctx context.Context, cmd inbound.GeneratePlanCommand) (*inbound.TargetsDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inbound.TargetsDTO), args.Error(1)
}

func (m *MockPlannerService) GroceryCSV(items []inbound.GroceryItemDTO) ([]byte, error) {
	args := m.Called(items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockImageCache is a mock implementation of the cache repository port
type MockImageCache struct {
	mock.Mock
}

func (m *MockImageCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockImageCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockImageCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockImageCache) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func newTestServer(t *testing.T, planner *MockPlannerService, imageCache *MockImageCache) *APIServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.Name = "Mealsmith"
	cfg.App.Version = "test"
	cfg.App.Environment = "test"
	cfg.APIServer.WriteTimeout = time.Minute
	cfg.Monitoring.HealthCheckPath = "/health"
	cfg.Monitoring.ReadinessPath = "/ready"
	cfg.Monitoring.LivenessPath = "/live"

	hc := healthcheck.New("test", zap.NewNop())

	return NewAPIServer(cfg, zap.NewNop(), planner, imageCache, hc, nil)
}

func postJSON(t *testing.T, s *APIServer, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func get(t *testing.T, s *APIServer, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return string(resp.Error.Code)
}

func validPlanRequest() map[string]interface{} {
	return map[string]interface{}{
		"age":            20,
		"gender":         "Male",
		"weight_kg":      50,
		"height_cm":      170,
		"activity_level": "Sedentary",
		"goal":           "Fat Loss",
	}
}

func samplePlan() *inbound.MealPlanDTO {
	return &inbound.MealPlanDTO{
		ID: "5a3c9f2e-9a01-4a7e-8a64-0f2a6b1f7f01",
		Targets: inbound.TargetsDTO{
			BMI:            17.3,
			BMR:            1467.5,
			TDEE:           1761.0,
			CalorieGoal:    1232.7,
			ProteinTargetG: 81.0,
			FatMinG:        50,
			FatMaxG:        60,
			FiberTargetG:   30,
			SugarLimitG:    18,
		},
		Days: []inbound.DayPlanDTO{
			{
				Heading: "Day 1",
				Meals: []inbound.MealDTO{
					{MealType: "Breakfast", Description: "Oatmeal with berries"},
				},
			},
		},
		DaysDetected: 7,
		GroceryItems: []inbound.GroceryItemDTO{
			{Category: "Produce", Item: "Spinach", Quantity: "200 g"},
		},
		GeneratedAt: "2026-01-15T10:30:00Z",
	}
}

func TestGeneratePlan_ReturnsPlan(t *testing.T) {
	planner := new(MockPlannerService)
	imageCache := new(MockImageCache)
	s := newTestServer(t, planner, imageCache)

	planner.On("GeneratePlan", mock.Anything, mock.MatchedBy(func(cmd inbound.GeneratePlanCommand) bool {
		return cmd.Age == 20 && cmd.Gender == "Male" && cmd.Goal == "Fat Loss"
	})).Return(samplePlan(), nil)

	w := postJSON(t, s, "/api/v1/plans", validPlanRequest())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var plan inbound.MealPlanDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Equal(t, 7, plan.DaysDetected)
	assert.Equal(t, 1232.7, plan.Targets.CalorieGoal)
	require.Len(t, plan.Days, 1)
	assert.Equal(t, "Day 1", plan.Days[0].Heading)

	planner.AssertExpectations(t)
}

func TestGeneratePlan_RejectsInvalidPayload(t *testing.T) {
	planner := new(MockPlannerService)
	s := newTestServer(t, planner, new(MockImageCache))

	body := validPlanRequest()
	body["age"] = 0

	w := postJSON(t, s, "/api/v1/plans", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.CodeValidationFailed), errorCode(t, w))
	planner.AssertNotCalled(t, "GeneratePlan", mock.Anything, mock.Anything)
}

func TestGeneratePlan_ModelFailureMapsToBadGateway(t *testing.T) {
	planner := new(MockPlannerService)
	s := newTestServer(t, planner, new(MockImageCache))

	planner.On("GeneratePlan", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewPlanGenerationError(fmt.Errorf("model timeout")))

	w := postJSON(t, s, "/api/v1/plans", validPlanRequest())

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, string(apperrors.CodePlanGenerationFailed), errorCode(t, w))
}

func TestGeneratePlan_EchoesRequestID(t *testing.T) {
	planner := new(MockPlannerService)
	s := newTestServer(t, planner, new(MockImageCache))

	planner.On("GeneratePlan", mock.Anything, mock.Anything).Return(samplePlan(), nil)

	payload, err := json.Marshal(validPlanRequest())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-12345")

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	assert.Equal(t, "req-12345", w.Header().Get("X-Request-ID"))
}

func TestPreviewTargets_ReturnsTargets(t *testing.T) {
	planner := new(MockPlannerService)
	s := newTestServer(t, planner, new(MockImageCache))

	targets := samplePlan().Targets
	planner.On("PreviewTargets", mock.Anything, mock.Anything).Return(&targets, nil)

	w := postJSON(t, s, "/api/v1/plans/preview", validPlanRequest())

	require.Equal(t, http.StatusOK, w.Code)

	var got inbound.TargetsDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1467.5, got.BMR)
	assert.Equal(t, 18, got.SugarLimitG)
}

func TestPreviewTargets_RejectsMissingGoal(t *testing.T) {
	planner := new(MockPlannerService)
	s := newTestServer(t, planner, new(MockImageCache))

	body := validPlanRequest()
	delete(body, "goal")

	w := postJSON(t, s, "/api/v1/plans/preview", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	planner.AssertNotCalled(t, "PreviewTargets", mock.Anything, mock.Anything)
}

func TestGroceryCSV_WritesAttachment(t *testing.T) {
	planner := new(MockPlannerService)
	s := newTestServer(t, planner, new(MockImageCache))

	csv := "Category,Item,Quantity\nProduce,Spinach,200 g\n"
	planner.On("GroceryCSV", mock.MatchedBy(func(items []inbound.GroceryItemDTO) bool {
		return len(items) == 1 && items[0].Item == "Spinach"
	})).Return([]byte(csv), nil)

	w := postJSON(t, s, "/api/v1/plans/grocery-csv", map[string]interface{}{
		"grocery_items": []map[string]string{
			{"category": "Produce", "item": "Spinach", "quantity": "200 g"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="grocery_list.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, csv, w.Body.String())
}

func TestGroceryCSV_EmptyListExportsHeaderOnly(t *testing.T) {
	planner := new(MockPlannerService)
	s := newTestServer(t, planner, new(MockImageCache))

	planner.On("GroceryCSV", mock.Anything).Return([]byte("Category,Item,Quantity\n"), nil)

	w := postJSON(t, s, "/api/v1/plans/grocery-csv", map[string]interface{}{})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Category,Item,Quantity\n", w.Body.String())
}

func TestImage_ServesCachedBytes(t *testing.T) {
	imageCache := new(MockImageCache)
	s := newTestServer(t, new(MockPlannerService), imageCache)

	key := "img:" + strings.Repeat("ab", 16)
	png := append([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 64)...)
	imageCache.On("Get", mock.Anything, key).Return(png, nil)

	w := get(t, s, "/api/v1/images/"+key)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "private, max-age=86400", w.Header().Get("Cache-Control"))
	assert.Equal(t, png, w.Body.Bytes())
}

func TestImage_UnknownKeyIsNotFound(t *testing.T) {
	imageCache := new(MockImageCache)
	s := newTestServer(t, new(MockPlannerService), imageCache)

	key := "img:" + strings.Repeat("00", 16)
	imageCache.On("Get", mock.Anything, key).Return(nil, cache.ErrKeyNotFound)

	w := get(t, s, "/api/v1/images/"+key)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperrors.CodeNotFound), errorCode(t, w))
}

func TestImage_RejectsForeignCacheKeys(t *testing.T) {
	imageCache := new(MockImageCache)
	s := newTestServer(t, new(MockPlannerService), imageCache)

	for _, key := range []string{
		"session:5a3c9f2e-9a01-4a7e-8a64-0f2a6b1f7f01",
		"img:short",
		"img:" + strings.Repeat("zz", 16),
	} {
		w := get(t, s, "/api/v1/images/"+key)
		assert.Equal(t, http.StatusNotFound, w.Code, "key %q", key)
	}

	imageCache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, new(MockPlannerService), new(MockImageCache))

	for _, path := range []string{"/health", "/ready", "/live"} {
		w := get(t, s, path)
		assert.Equal(t, http.StatusOK, w.Code, "path %s", path)
	}
}

func TestOpenAPI_SpecAndDocsServed(t *testing.T) {
	s := newTestServer(t, new(MockPlannerService), new(MockImageCache))

	spec := get(t, s, "/api/v1/openapi.yaml")
	require.Equal(t, http.StatusOK, spec.Code)
	assert.Contains(t, spec.Body.String(), "openapi: 3.0.3")
	assert.Contains(t, spec.Body.String(), "/plans/grocery-csv")

	docs := get(t, s, "/api/v1/docs")
	require.Equal(t, http.StatusOK, docs.Code)
	assert.Contains(t, docs.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, docs.Body.String(), "swagger-ui")
}
