package webserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/application/planner"
	"github.com/mealsmith/v2/internal/domain/nutrition"
	"github.com/mealsmith/v2/internal/infrastructure/cache"
	"github.com/mealsmith/v2/internal/ports/inbound"
	"github.com/mealsmith/v2/pkg/healthcheck"

	apperrors "github.com/mealsmith/v2/pkg/errors"
)

// Form option lists, in the order the selects render them.
var (
	genderOptions = []string{
		string(nutrition.GenderMale),
		string(nutrition.GenderFemale),
		string(nutrition.GenderOther),
	}
	activityOptions = []string{
		string(nutrition.ActivityLevelSedentary),
		string(nutrition.ActivityLevelLight),
		string(nutrition.ActivityLevelModerate),
		string(nutrition.ActivityLevelActive),
		string(nutrition.ActivityLevelExtraActive),
	}
	goalOptions = []string{
		string(nutrition.GoalFatLoss),
		string(nutrition.GoalMuscleGain),
		string(nutrition.GoalMaintain),
	}
	dietOptions = []string{
		string(nutrition.DietPreferenceVegan),
		string(nutrition.DietPreferenceVegetarian),
		string(nutrition.DietPreferenceKeto),
		string(nutrition.DietPreferenceLowCarb),
		string(nutrition.DietPreferenceHighProtein),
	}
)

// planForm echoes raw form values back into the template so the user
// keeps their input after a validation failure.
type planForm struct {
	Age               string
	Gender            string
	Weight            string
	Height            string
	BodyFat           string
	ActivityLevel     string
	Goal              string
	DietPreferences   []string
	Allergies         string
	PreferredCuisines string
}

func defaultPlanForm() planForm {
	return planForm{
		Age:           "20",
		Gender:        genderOptions[0],
		Weight:        "50",
		Height:        "170",
		BodyFat:       "10",
		ActivityLevel: activityOptions[0],
		Goal:          goalOptions[0],
	}
}

// HasDiet reports whether the option was checked. Templates call it
// to restore checkbox state.
func (f planForm) HasDiet(option string) bool {
	for _, pref := range f.DietPreferences {
		if pref == option {
			return true
		}
	}
	return false
}

func readPlanForm(r *http.Request) planForm {
	return planForm{
		Age:               strings.TrimSpace(r.FormValue("age")),
		Gender:            r.FormValue("gender"),
		Weight:            strings.TrimSpace(r.FormValue("weight_kg")),
		Height:            strings.TrimSpace(r.FormValue("height_cm")),
		BodyFat:           strings.TrimSpace(r.FormValue("body_fat_percent")),
		ActivityLevel:     r.FormValue("activity_level"),
		Goal:              r.FormValue("goal"),
		DietPreferences:   r.Form["diet_preferences"],
		Allergies:         strings.TrimSpace(r.FormValue("allergies")),
		PreferredCuisines: strings.TrimSpace(r.FormValue("preferred_cuisines")),
	}
}

// toCommand converts the raw strings into the planner command shared
// with the API server. Numeric conversion failures surface as field
// errors before validation runs.
func (f planForm) toCommand() (inbound.GeneratePlanCommand, error) {
	var cmd inbound.GeneratePlanCommand

	age, err := strconv.Atoi(f.Age)
	if err != nil {
		return cmd, fmt.Errorf("age must be a whole number")
	}
	weight, err := strconv.ParseFloat(f.Weight, 64)
	if err != nil {
		return cmd, fmt.Errorf("weight must be a number")
	}
	height, err := strconv.ParseFloat(f.Height, 64)
	if err != nil {
		return cmd, fmt.Errorf("height must be a number")
	}

	cmd = inbound.GeneratePlanCommand{
		Age:               age,
		Gender:            f.Gender,
		WeightKg:          weight,
		HeightCm:          height,
		ActivityLevel:     f.ActivityLevel,
		Goal:              f.Goal,
		DietPreferences:   f.DietPreferences,
		Allergies:         f.Allergies,
		PreferredCuisines: f.PreferredCuisines,
	}

	if f.BodyFat != "" {
		bodyFat, err := strconv.ParseFloat(f.BodyFat, 64)
		if err != nil {
			return cmd, fmt.Errorf("body fat percentage must be a number")
		}
		cmd.BodyFatPercent = &bodyFat
	}

	return cmd, nil
}

var fieldLabels = map[string]string{
	"Age":            "age",
	"Gender":         "gender",
	"WeightKg":       "weight",
	"HeightCm":       "height",
	"BodyFatPercent": "body fat percentage",
	"ActivityLevel":  "activity level",
	"Goal":           "health goal",
}

// validationMessage turns the first validator failure into a sentence
// a visitor can act on.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	field := verrs[0]
	label, ok := fieldLabels[field.Field()]
	if !ok {
		label = strings.ToLower(field.Field())
	}

	switch field.Tag() {
	case "required":
		return fmt.Sprintf("Please fill in the %s field.", label)
	case "min", "gte":
		return fmt.Sprintf("The %s value must be at least %s.", label, field.Param())
	case "max", "lte":
		return fmt.Sprintf("The %s value must be at most %s.", label, field.Param())
	case "gt":
		return fmt.Sprintf("The %s value must be greater than %s.", label, field.Param())
	default:
		return fmt.Sprintf("The %s value is invalid.", label)
	}
}

func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderHome(w, r, defaultPlanForm(), "", http.StatusOK)
}

func (s *WebServer) renderHome(w http.ResponseWriter, r *http.Request, form planForm, errorMessage string, status int) {
	session := sessionFrom(r.Context())

	data := map[string]interface{}{
		"Title":          s.config.App.Name,
		"Form":           form,
		"Genders":        genderOptions,
		"ActivityLevels": activityOptions,
		"Goals":          goalOptions,
		"DietOptions":    dietOptions,
		"HasPlan":        session != nil && session.Plan != nil,
	}
	if errorMessage != "" {
		data["Error"] = errorMessage
	}

	s.renderTemplate(w, status, "home", data)
}

// handleGeneratePlan runs the full pipeline for a submitted profile.
// Validation failures re-render the form with the input preserved;
// model failures render an error banner without losing the session.
func (s *WebServer) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderHome(w, r, defaultPlanForm(), "The submitted form could not be read.", http.StatusBadRequest)
		return
	}

	form := readPlanForm(r)

	cmd, err := form.toCommand()
	if err == nil {
		err = s.validate.Struct(cmd)
		if err != nil {
			err = fmt.Errorf("%s", validationMessage(err))
		}
	}
	if err != nil {
		s.renderHome(w, r, form, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := s.ensureSession(w, r)
	if err != nil {
		s.logger.Error("Failed to create session", zap.Error(err))
		s.renderHome(w, r, form, "Something went wrong on our side. Please try again.", http.StatusInternalServerError)
		return
	}

	plan, err := s.planner.GeneratePlan(r.Context(), cmd)
	if err != nil {
		s.logger.Error("Plan generation failed", zap.Error(err))
		s.renderHome(w, r, form, planErrorMessage(err), http.StatusOK)
		return
	}

	if err := s.sessions.SavePlan(r.Context(), session.ID, plan); err != nil {
		s.logger.Error("Failed to store plan",
			zap.String("session_id", session.ID),
			zap.Error(err))
		s.renderHome(w, r, form, "Your plan was generated but could not be saved. Please try again.", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/plan", http.StatusSeeOther)
}

// planErrorMessage maps pipeline errors to user-facing text.
func planErrorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message + ". Please try again in a moment."
	}
	return "The meal plan service is unavailable right now. Please try again in a moment."
}

func (s *WebServer) handlePlanPage(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if session == nil || session.Plan == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	plan := session.Plan
	s.renderTemplate(w, http.StatusOK, "plan", map[string]interface{}{
		"Title":   "Your 7-Day Diet Plan",
		"Plan":    plan,
		"Targets": plan.Targets,
		"HasPlan": true,
	})
}

func (s *WebServer) handleGroceryCSV(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if session == nil || session.Plan == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	csvBytes, err := s.planner.GroceryCSV(session.Plan.GroceryItems)
	if err != nil {
		s.logger.Error("Failed to render grocery CSV",
			zap.String("session_id", session.ID),
			zap.Error(err))
		http.Error(w, "Failed to export grocery list", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="grocery_list.csv"`)
	w.Write(csvBytes)
}

func (s *WebServer) handleClearPlan(w http.ResponseWriter, r *http.Request) {
	if session := sessionFrom(r.Context()); session != nil {
		s.endSession(w, r, session.ID)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleTargetsPartial powers the live preview under the form. It
// always answers 200 with a fragment; htmx swaps the response into
// the preview container either way.
func (s *WebServer) handleTargetsPartial(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeTargetsError(w, "The submitted form could not be read.")
		return
	}

	cmd, err := readPlanForm(r).toCommand()
	if err == nil {
		err = s.validate.Struct(cmd)
		if err != nil {
			err = fmt.Errorf("%s", validationMessage(err))
		}
	}
	if err != nil {
		s.writeTargetsError(w, err.Error())
		return
	}

	targets, err := s.planner.PreviewTargets(r.Context(), cmd)
	if err != nil {
		s.logger.Error("Targets preview failed", zap.Error(err))
		s.writeTargetsError(w, "Could not compute targets from these values.")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "partials/targets", map[string]interface{}{
		"Targets": targets,
	}); err != nil {
		s.logger.Error("Failed to render targets partial", zap.Error(err))
	}
}

func (s *WebServer) writeTargetsError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<div class="banner banner-error">%s</div>`, message)
}

// handleImage streams a generated meal image out of the cache.
func (s *WebServer) handleImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !planner.IsImageKey(key) {
		http.NotFound(w, r)
		return
	}

	data, err := s.imageCache.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("Failed to load cached image",
			zap.String("key", key),
			zap.Error(err))
		http.Error(w, "Failed to load image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Write(data)
}

func (s *WebServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, http.StatusNotFound, "error", map[string]interface{}{
		"Title":   "Page not found",
		"Message": "The page you were looking for does not exist.",
	})
}

func (s *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := s.healthCheck.Check(r.Context())

	status := http.StatusOK
	if response.Status == healthcheck.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

// handleReadiness reports not ready only on a hard failure. Degraded
// components keep serving plans, so they keep the instance in rotation.
func (s *WebServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	response := s.healthCheck.Check(r.Context())

	if response.Status == healthcheck.StatusUnhealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"reason": "Health checks failed",
			"checks": response.Checks,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

func (s *WebServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
