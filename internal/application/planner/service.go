// Package planner provides the application layer for meal plan
// generation. It implements the use cases defined in the inbound
// ports by chaining profile normalization, target derivation, text
// generation, parsing, and image resolution.
package planner

import (
	"bytes"
	"context"
	"encoding/csv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/domain/mealplan"
	"github.com/mealsmith/v2/internal/domain/nutrition"
	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/ports/inbound"
	"github.com/mealsmith/v2/internal/ports/outbound"
	"github.com/mealsmith/v2/pkg/errors"
)

// IncompletePlanWarning is shown when fewer than seven distinct day
// headings come back from the model.
const IncompletePlanWarning = "The model did not generate a full 7-day plan. Try regenerating"

// PlannerService implements the meal planning use cases
type PlannerService struct {
	calculator     *nutrition.Calculator
	textGen        outbound.TextGenerator
	images         *ImageResolver
	defaultBodyFat float64
	logger         *zap.Logger
}

// NewPlannerService creates a new planner service
func NewPlannerService(
	calculator *nutrition.Calculator,
	textGen outbound.TextGenerator,
	images *ImageResolver,
	nutritionCfg config.NutritionConfig,
	logger *zap.Logger,
) inbound.PlannerService {
	return &PlannerService{
		calculator:     calculator,
		textGen:        textGen,
		images:         images,
		defaultBodyFat: nutritionCfg.DefaultBodyFatPercent,
		logger:         logger.Named("planner-service"),
	}
}

// GeneratePlan runs the full pipeline for one submission.
func (s *PlannerService) GeneratePlan(ctx context.Context, cmd inbound.GeneratePlanCommand) (*inbound.MealPlanDTO, error) {
	s.logger.Info("Generating meal plan",
		zap.Int("age", cmd.Age),
		zap.String("gender", cmd.Gender),
		zap.String("activity_level", cmd.ActivityLevel),
		zap.String("goal", cmd.Goal),
	)

	profile := s.buildProfile(cmd)
	targets := s.calculator.Calculate(profile)

	// The plan comes back in two halves to stay inside the model's
	// output length limit.
	firstPrompt, secondPrompt := mealplan.BuildPlanPartPrompts(profile, targets)

	firstPart, err := s.textGen.Generate(ctx, firstPrompt)
	if err != nil {
		return nil, errors.NewPlanGenerationError(err)
	}
	secondPart, err := s.textGen.Generate(ctx, secondPrompt)
	if err != nil {
		return nil, errors.NewPlanGenerationError(err)
	}
	planText := mealplan.CombinePlanParts(firstPart, secondPart)

	daysDetected := mealplan.DistinctDayCount(planText)
	warning := ""
	if daysDetected < mealplan.PlanDays {
		warning = IncompletePlanWarning
		s.logger.Warn("Plan came back with missing days",
			zap.Int("days_detected", daysDetected),
		)
	}

	days := s.assembleDays(ctx, mealplan.ParsePlan(planText))

	groceryText, err := s.textGen.Generate(ctx, mealplan.BuildGroceryPrompt(planText))
	if err != nil {
		return nil, errors.NewPlanGenerationError(err)
	}
	groceryItems := groceryItemsToDTO(mealplan.ParseGroceryList(groceryText))

	dto := &inbound.MealPlanDTO{
		ID:           uuid.New().String(),
		Targets:      targetsToDTO(targets),
		Days:         days,
		DaysDetected: daysDetected,
		Warning:      warning,
		GroceryItems: groceryItems,
		PlanText:     planText,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	s.logger.Info("Meal plan generated",
		zap.String("plan_id", dto.ID),
		zap.Int("days_detected", daysDetected),
		zap.Int("grocery_items", len(groceryItems)),
	)

	return dto, nil
}

// PreviewTargets derives targets without any model call.
func (s *PlannerService) PreviewTargets(ctx context.Context, cmd inbound.GeneratePlanCommand) (*inbound.TargetsDTO, error) {
	profile := s.buildProfile(cmd)
	targets := s.calculator.Calculate(profile)

	dto := targetsToDTO(targets)

	s.logger.Debug("Targets previewed",
		zap.Float64("calorie_goal", dto.CalorieGoal),
		zap.Float64("protein_target_g", dto.ProteinTargetG),
	)

	return &dto, nil
}

// GroceryCSV renders grocery items as delimited text for download.
func (s *PlannerService) GroceryCSV(items []inbound.GroceryItemDTO) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Category", "Item", "Quantity"}); err != nil {
		return nil, errors.Wrap(err, "failed to write grocery header")
	}
	for _, item := range items {
		if err := w.Write([]string{item.Category, item.Item, item.Quantity}); err != nil {
			return nil, errors.Wrap(err, "failed to write grocery row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to flush grocery csv")
	}
	return buf.Bytes(), nil
}

// buildProfile normalizes the raw command into a domain profile.
func (s *PlannerService) buildProfile(cmd inbound.GeneratePlanCommand) *nutrition.Profile {
	return nutrition.NewProfile(nutrition.ProfileInput{
		Age:               cmd.Age,
		Gender:            cmd.Gender,
		WeightKg:          cmd.WeightKg,
		HeightCm:          cmd.HeightCm,
		BodyFatPercent:    cmd.BodyFatPercent,
		ActivityLevel:     cmd.ActivityLevel,
		Goal:              cmd.Goal,
		DietPreferences:   cmd.DietPreferences,
		Allergies:         cmd.Allergies,
		PreferredCuisines: cmd.PreferredCuisines,
	}, s.defaultBodyFat)
}

// assembleDays converts parsed days to DTOs, resolving one image per
// described meal. Resolution stays serial; a submission makes at most
// a few dozen lookups and the image sources rate-limit aggressively.
func (s *PlannerService) assembleDays(ctx context.Context, days []mealplan.DayPlan) []inbound.DayPlanDTO {
	dtos := make([]inbound.DayPlanDTO, 0, len(days))

	for _, day := range days {
		dayDTO := inbound.DayPlanDTO{
			Heading: day.Heading,
			Body:    day.Body,
			Meals:   make([]inbound.MealDTO, 0, len(day.Meals)),
		}

		for _, meal := range day.Meals {
			mealDTO := inbound.MealDTO{
				MealType:    meal.MealType,
				Description: meal.Description,
			}
			if meal.HasDescription() {
				img := s.images.Resolve(ctx, meal.Description)
				mealDTO.ImageURL = img.URL
				mealDTO.ImageKey = img.Key
			}
			dayDTO.Meals = append(dayDTO.Meals, mealDTO)
		}

		dtos = append(dtos, dayDTO)
	}

	return dtos
}

func targetsToDTO(t nutrition.Targets) inbound.TargetsDTO {
	return inbound.TargetsDTO{
		BMI:            t.BMI,
		BMR:            t.BMR,
		TDEE:           t.TDEE,
		CalorieGoal:    t.CalorieGoal,
		ProteinTargetG: t.ProteinTargetG,
		FatMinG:        t.FatMinG,
		FatMaxG:        t.FatMaxG,
		FiberTargetG:   t.FiberTargetG,
		SugarLimitG:    t.SugarLimitG,
	}
}

func groceryItemsToDTO(items []mealplan.GroceryItem) []inbound.GroceryItemDTO {
	dtos := make([]inbound.GroceryItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, inbound.GroceryItemDTO{
			Category: item.Category,
			Item:     item.Item,
			Quantity: item.Quantity,
		})
	}
	return dtos
}
