// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import "context"

// PlannerService defines the meal planning use cases. This is the
// primary port the HTTP handlers and other driving adapters use.
type PlannerService interface {
	// GeneratePlan runs the full pipeline: normalize the profile,
	// derive targets, request the plan and grocery list from the
	// text model, parse both, and resolve meal images.
	GeneratePlan(ctx context.Context, cmd GeneratePlanCommand) (*MealPlanDTO, error)

	// PreviewTargets derives calorie and macro targets without
	// calling the text model.
	PreviewTargets(ctx context.Context, cmd GeneratePlanCommand) (*TargetsDTO, error)

	// GroceryCSV renders a parsed grocery list as delimited text
	// with Category, Item and Quantity columns.
	GroceryCSV(items []GroceryItemDTO) ([]byte, error)
}

// GeneratePlanCommand contains the raw biometric form values.
// BodyFatPercent is optional; nil takes the configured default.
type GeneratePlanCommand struct {
	Age               int      `json:"age" binding:"required,min=1,max=120"`
	Gender            string   `json:"gender" binding:"required"`
	WeightKg          float64  `json:"weight_kg" binding:"required,gt=0"`
	HeightCm          float64  `json:"height_cm" binding:"required,gt=0"`
	BodyFatPercent    *float64 `json:"body_fat_percent,omitempty" binding:"omitempty,min=5,max=50"`
	ActivityLevel     string   `json:"activity_level" binding:"required"`
	Goal              string   `json:"goal" binding:"required"`
	DietPreferences   []string `json:"diet_preferences,omitempty"`
	Allergies         string   `json:"allergies,omitempty"`
	PreferredCuisines string   `json:"preferred_cuisines,omitempty"`
}

// Response DTOs

// TargetsDTO carries the derived calorie and macro targets.
type TargetsDTO struct {
	BMI            float64 `json:"bmi"`
	BMR            float64 `json:"bmr"`
	TDEE           float64 `json:"tdee"`
	CalorieGoal    float64 `json:"calorie_goal"`
	ProteinTargetG float64 `json:"protein_target_g"`
	FatMinG        float64 `json:"fat_min_g"`
	FatMaxG        float64 `json:"fat_max_g"`
	FiberTargetG   float64 `json:"fiber_target_g"`
	SugarLimitG    int     `json:"sugar_limit_g"`
}

// MealDTO is one meal line of a day. ImageURL points at an external
// search result; ImageKey references a generated image held in the
// image cache and served by the /images route.
type MealDTO struct {
	MealType    string `json:"meal_type"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
	ImageKey    string `json:"image_key,omitempty"`
}

// DayPlanDTO is one parsed day segment.
type DayPlanDTO struct {
	Heading string    `json:"heading"`
	Body    string    `json:"body,omitempty"`
	Meals   []MealDTO `json:"meals"`
}

// GroceryItemDTO is one categorized grocery line.
type GroceryItemDTO struct {
	Category string `json:"category"`
	Item     string `json:"item"`
	Quantity string `json:"quantity"`
}

// MealPlanDTO is the full pipeline result for one submission.
type MealPlanDTO struct {
	ID           string           `json:"id"`
	Targets      TargetsDTO       `json:"targets"`
	Days         []DayPlanDTO     `json:"days"`
	DaysDetected int              `json:"days_detected"`
	Warning      string           `json:"warning,omitempty"`
	GroceryItems []GroceryItemDTO `json:"grocery_items"`
	PlanText     string           `json:"-"`
	GeneratedAt  string           `json:"generated_at"`
}

// ImageKeys lists the cached generated-image keys referenced by the
// plan, in display order. Session teardown uses it for eviction.
func (m *MealPlanDTO) ImageKeys() []string {
	var keys []string
	for _, day := range m.Days {
		for _, meal := range day.Meals {
			if meal.ImageKey != "" {
				keys = append(keys, meal.ImageKey)
			}
		}
	}
	return keys
}
