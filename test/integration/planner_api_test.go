//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/application/planner"
	"github.com/mealsmith/v2/internal/domain/nutrition"
	"github.com/mealsmith/v2/internal/infrastructure/cache"
	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/infrastructure/http/apiserver"
	"github.com/mealsmith/v2/internal/ports/inbound"
	"github.com/mealsmith/v2/pkg/healthcheck"
	"github.com/mealsmith/v2/test/testutils"
)

// fakeModel answers the three pipeline prompts by shape: the ranged
// plan requests and the grocery extraction.
type fakeModel struct {
	firstHalf  string
	secondHalf string
	grocery    string
}

func (f *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "grocery shopping list"):
		return f.grocery, nil
	case strings.Contains(prompt, "Day 1 to Day 3"):
		return f.firstHalf, nil
	default:
		return f.secondHalf, nil
	}
}

// newPlannerAPI wires the real pipeline end to end: calculator,
// parsers, session-free API server. Only the model is faked.
func newPlannerAPI(t *testing.T, model *fakeModel) *apiserver.APIServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.Name = "Mealsmith"
	cfg.App.Version = "integration"
	cfg.App.Environment = "test"
	cfg.APIServer.WriteTimeout = time.Minute
	cfg.Monitoring.HealthCheckPath = "/health"
	cfg.Monitoring.ReadinessPath = "/ready"
	cfg.Monitoring.LivenessPath = "/live"
	cfg.Nutrition.DefaultBodyFatPercent = 10

	log := zap.NewNop()
	cacheSvc := cache.NewService(nil, log)
	t.Cleanup(func() { cacheSvc.Close() })

	resolver := planner.NewImageResolver(config.ImageStrategyOff, nil, nil, cacheSvc, cfg.Images, log)
	calculator := nutrition.NewCalculator(nil, 0, 0, 0)
	svc := planner.NewPlannerService(calculator, model, resolver, cfg.Nutrition, log)

	hc := healthcheck.New(cfg.App.Version, log)
	return apiserver.NewAPIServer(cfg, log, svc, cacheSvc, hc, nil)
}

func postJSON(t *testing.T, server *apiserver.APIServer, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, req)
	return w
}

func TestPlanGeneration_FullPipeline(t *testing.T) {
	plans := testutils.NewPlanFactory(42)
	model := &fakeModel{
		firstHalf:  plans.PlanTextRange(1, 3),
		secondHalf: plans.PlanTextRange(4, 7),
		grocery:    plans.GroceryText("Vegetables", "Fruits", "Proteins"),
	}
	server := newPlannerAPI(t, model)

	cmd := testutils.NewProfileFactory(1).ValidCommand()
	w := postJSON(t, server, "/api/v1/plans", cmd)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var plan inbound.MealPlanDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))

	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, 7, plan.DaysDetected)
	assert.Empty(t, plan.Warning)
	require.Len(t, plan.Days, 7)
	assert.Equal(t, "Day 1", plan.Days[0].Heading)
	require.Len(t, plan.Days[0].Meals, 4)
	assert.Equal(t, "Breakfast", plan.Days[0].Meals[0].MealType)
	assert.NotEmpty(t, plan.Days[0].Meals[0].Description)

	require.Len(t, plan.GroceryItems, 3)
	assert.Equal(t, "Vegetables", plan.GroceryItems[0].Category)
	assert.NotEmpty(t, plan.GroceryItems[0].Quantity)
}

func TestPlanGeneration_ShortPlanCarriesWarning(t *testing.T) {
	plans := testutils.NewPlanFactory(42)
	model := &fakeModel{
		// Both halves come back truncated to three days
		firstHalf:  plans.PlanTextRange(1, 3),
		secondHalf: plans.PlanTextRange(1, 3),
		grocery:    plans.GroceryText("Others"),
	}
	server := newPlannerAPI(t, model)

	cmd := testutils.NewProfileFactory(1).ValidCommand()
	w := postJSON(t, server, "/api/v1/plans", cmd)
	require.Equal(t, http.StatusOK, w.Code)

	var plan inbound.MealPlanDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))

	assert.Equal(t, 3, plan.DaysDetected)
	assert.NotEmpty(t, plan.Warning)
}

func TestTargetPreview_RandomProfilesStayConsistent(t *testing.T) {
	server := newPlannerAPI(t, &fakeModel{})
	profiles := testutils.NewProfileFactory(7)

	for i := 0; i < 10; i++ {
		cmd := profiles.RandomCommand()

		w := postJSON(t, server, "/api/v1/plans/preview", cmd)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var targets inbound.TargetsDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &targets))

		// Derived values hold their invariants for any profile
		assert.Greater(t, targets.BMR, 0.0)
		assert.Greater(t, targets.TDEE, targets.BMR)
		assert.LessOrEqual(t, targets.CalorieGoal, targets.TDEE)
		assert.Greater(t, targets.ProteinTargetG, 0.0)
		assert.Equal(t, 50.0, targets.FatMinG)
		assert.Equal(t, 60.0, targets.FatMaxG)
	}
}
