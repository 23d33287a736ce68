// Package testutils provides test data factories and container-backed
// infrastructure for integration tests.
package testutils

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/mealsmith/v2/internal/ports/inbound"
)

// ProfileFactory generates biometric plan commands. Seeding the faker
// keeps a test's inputs reproducible across runs.
type ProfileFactory struct {
	faker *gofakeit.Faker
}

// NewProfileFactory creates a profile factory with a seeded faker.
func NewProfileFactory(seed int64) *ProfileFactory {
	return &ProfileFactory{faker: gofakeit.New(seed)}
}

// ValidCommand returns a fixed command that exercises every field.
func (pf *ProfileFactory) ValidCommand() inbound.GeneratePlanCommand {
	bodyFat := 18.0
	return inbound.GeneratePlanCommand{
		Age:               32,
		Gender:            "Female",
		WeightKg:          65,
		HeightCm:          168,
		BodyFatPercent:    &bodyFat,
		ActivityLevel:     "Moderate",
		Goal:              "Fat Loss",
		DietPreferences:   []string{"High-Protein"},
		Allergies:         "peanuts",
		PreferredCuisines: "Mediterranean",
	}
}

// RandomCommand returns a command with realistic randomized biometrics.
func (pf *ProfileFactory) RandomCommand() inbound.GeneratePlanCommand {
	return inbound.GeneratePlanCommand{
		Age:           pf.faker.IntRange(18, 65),
		Gender:        pf.faker.RandomString([]string{"Male", "Female", "Other"}),
		WeightKg:      pf.faker.Float64Range(50, 120),
		HeightCm:      pf.faker.Float64Range(150, 200),
		ActivityLevel: pf.faker.RandomString([]string{"Sedentary", "Light", "Moderate", "Active", "Extra_Active"}),
		Goal:          pf.faker.RandomString([]string{"Fat Loss", "Muscle Gain", "Maintain Weight"}),
	}
}

// PlanFactory generates model-shaped plan text and parsed plan DTOs.
type PlanFactory struct {
	faker *gofakeit.Faker
}

// NewPlanFactory creates a plan factory with a seeded faker.
func NewPlanFactory(seed int64) *PlanFactory {
	return &PlanFactory{faker: gofakeit.New(seed)}
}

// PlanText renders text in the day-heading and emphasized-meal grammar
// the model is prompted for, with faker dishes as descriptions.
func (pf *PlanFactory) PlanText(days int) string {
	return pf.PlanTextRange(1, days)
}

// PlanTextRange renders the day range from..to inclusive, matching the
// two ranged completions the planner asks for.
func (pf *PlanFactory) PlanTextRange(from, to int) string {
	var b strings.Builder
	for day := from; day <= to; day++ {
		fmt.Fprintf(&b, "Day %d\n", day)
		for _, meal := range []string{"Breakfast", "Lunch", "Dinner", "Snack"} {
			fmt.Fprintf(&b, "**%s**: %s\n", meal, pf.faker.Dinner())
		}
		b.WriteString("\n")
	}
	return b.String()
}

// GroceryText renders a categorized grocery list in the double-hash
// grammar, one faker item per category.
func (pf *PlanFactory) GroceryText(categories ...string) string {
	var b strings.Builder
	for _, category := range categories {
		fmt.Fprintf(&b, "## %s\n", category)
		fmt.Fprintf(&b, "- %s – %d units\n", pf.faker.Fruit(), pf.faker.IntRange(1, 6))
	}
	return b.String()
}

// PlanDTO builds a parsed plan result with one image key per day,
// the shape the session store persists.
func (pf *PlanFactory) PlanDTO(days int) *inbound.MealPlanDTO {
	dto := &inbound.MealPlanDTO{
		ID:           uuid.NewString(),
		DaysDetected: days,
	}
	for day := 1; day <= days; day++ {
		dto.Days = append(dto.Days, inbound.DayPlanDTO{
			Heading: fmt.Sprintf("Day %d", day),
			Meals: []inbound.MealDTO{{
				MealType:    "Dinner",
				Description: pf.faker.Dinner(),
				ImageKey:    fmt.Sprintf("img:%s:%d", dto.ID, day),
			}},
		})
	}
	return dto
}
