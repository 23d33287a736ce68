package apiserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/application/planner"
	"github.com/mealsmith/v2/internal/infrastructure/cache"
	"github.com/mealsmith/v2/internal/ports/inbound"

	apperrors "github.com/mealsmith/v2/pkg/errors"
)

// groceryCSVRequest carries an already parsed grocery list back for
// CSV export. No required tag: an empty list exports a header-only
// file.
type groceryCSVRequest struct {
	GroceryItems []inbound.GroceryItemDTO `json:"grocery_items"`
}

// handleGeneratePlan handles POST /api/v1/plans. It runs the full
// pipeline synchronously, so the response can take as long as the
// text model does.
func (s *APIServer) handleGeneratePlan(c *gin.Context) {
	var cmd inbound.GeneratePlanCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.Error(apperrors.NewValidationError(err.Error()))
		return
	}

	s.logger.Info("Plan generation request",
		zap.String("goal", cmd.Goal),
		zap.String("activity_level", cmd.ActivityLevel),
		zap.Strings("diet_preferences", cmd.DietPreferences),
	)

	plan, err := s.planner.GeneratePlan(c.Request.Context(), cmd)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// handlePreviewTargets handles POST /api/v1/plans/preview. It derives
// calorie and macro targets from the same payload without touching the
// text model.
func (s *APIServer) handlePreviewTargets(c *gin.Context) {
	var cmd inbound.GeneratePlanCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.Error(apperrors.NewValidationError(err.Error()))
		return
	}

	targets, err := s.planner.PreviewTargets(c.Request.Context(), cmd)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, targets)
}

// handleGroceryCSV handles POST /api/v1/plans/grocery-csv.
func (s *APIServer) handleGroceryCSV(c *gin.Context) {
	var req groceryCSVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError(err.Error()))
		return
	}

	data, err := s.planner.GroceryCSV(req.GroceryItems)
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="grocery_list.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// handleImage handles GET /api/v1/images/:key, streaming a generated
// meal image out of the cache. Keys that are not generated-image keys
// read as not found, so other cache entries stay unreachable.
func (s *APIServer) handleImage(c *gin.Context) {
	key := c.Param("key")
	if !planner.IsImageKey(key) {
		c.Error(apperrors.NewNotFoundError("image"))
		return
	}

	data, err := s.imageCache.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			c.Error(apperrors.NewNotFoundError("image"))
			return
		}
		c.Error(apperrors.Wrap(err, "read image cache"))
		return
	}

	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
