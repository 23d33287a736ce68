package mealplan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealsmith/v2/internal/domain/nutrition"
)

func referenceProfile(t *testing.T) (*nutrition.Profile, nutrition.Targets) {
	t.Helper()
	profile := nutrition.NewProfile(nutrition.ProfileInput{
		Age:           20,
		Gender:        "Male",
		WeightKg:      50,
		HeightCm:      170,
		ActivityLevel: "Sedentary",
		Goal:          "Fat Loss",
	}, 10)
	calc := nutrition.NewCalculator(nutrition.DefaultActivityFactors(), 50, 60, 30)
	return profile, calc.Calculate(profile)
}

func TestBuildPlanPrompt_FullText(t *testing.T) {
	profile, targets := referenceProfile(t)

	prompt := BuildPlanPrompt(profile, targets)

	expected := `Create a personalized **7-day meal plan** for the following individual:
- Age: 20
- Gender: Male
- Weight: 50 kg
- Height: 170 cm
- Body Fat %: 10%
- Activity Level: Sedentary
- Goal: Fat Loss
- Diet Preferences: None
- Allergies: None
- Preferred Cuisines: Any
- Daily Calorie Goal: approximately 1233 Kcal

Nutrition Guidelines (strictly follow):
- **Protein**: Minimum **81.0 grams/day**, based on lean body mass
- **Fat**: Between **50–60 grams/day**
- **Fiber**: Minimum **30 grams/day**
- **Added Sugar**: No more than **18 grams/day** (6% of daily calorie intake)
Meal Plan Rules:
- provide meal plan for 7 days with **Breakfast, Lunch, Dinner, and Snacks** for each day
- Include for **each meal**: calories, protein, carbs, fats, fiber, added sugar
- Use diet preferences, allergies, and preferred cuisines to personalize meals
- Ensure meals are nutritionally balanced
- Format clearly with "Day 1", "Day 2",...., "Day 7" etc.`

	assert.Equal(t, expected, prompt)
}

func TestBuildPlanPrompt_PopulatedPreferences(t *testing.T) {
	profile := nutrition.NewProfile(nutrition.ProfileInput{
		Age: 35, Gender: "Female", WeightKg: 62.5, HeightCm: 165,
		ActivityLevel:     "Moderate",
		Goal:              "Muscle Gain",
		DietPreferences:   []string{"Vegetarian", "High-Protein"},
		Allergies:         "peanuts",
		PreferredCuisines: "Indian, Thai",
	}, 10)
	calc := nutrition.NewCalculator(nutrition.DefaultActivityFactors(), 50, 60, 30)

	prompt := BuildPlanPrompt(profile, calc.Calculate(profile))

	assert.Contains(t, prompt, "- Weight: 62.5 kg")
	assert.Contains(t, prompt, "- Diet Preferences: Vegetarian, High-Protein")
	assert.Contains(t, prompt, "- Allergies: peanuts")
	assert.Contains(t, prompt, "- Preferred Cuisines: Indian, Thai")
}

func TestBuildPlanPartPrompts(t *testing.T) {
	profile, targets := referenceProfile(t)

	first, second := BuildPlanPartPrompts(profile, targets)
	base := BuildPlanPrompt(profile, targets)

	require.True(t, strings.HasPrefix(first, base))
	require.True(t, strings.HasPrefix(second, base))
	assert.True(t, strings.HasSuffix(first, "Please generate meal plans for Day 1 to Day 3 only."))
	assert.True(t, strings.HasSuffix(second, "Please generate meal plans for Day 4 to Day 7 only."))
}

func TestCombinePlanParts(t *testing.T) {
	combined := CombinePlanParts("  Day 1\n**Breakfast**: Oats\n", "\nDay 4\n**Lunch**: Dal  ")

	assert.Equal(t, "Day 1\n**Breakfast**: Oats\n\nDay 4\n**Lunch**: Dal", combined)
}

func TestBuildGroceryPrompt(t *testing.T) {
	plan := "Day 1\n**Breakfast**: Oats"

	prompt := BuildGroceryPrompt(plan)

	assert.True(t, strings.HasPrefix(prompt, "Here is a 7-day diet plan:\nDay 1\n**Breakfast**: Oats\n\n"))
	assert.Contains(t, prompt, "- Vegetables\n- Fruits\n- Grains\n- Dairy\n- Proteins\n- Spices & Condiments\n- Others")
	assert.True(t, strings.HasSuffix(prompt, "with headers like ## Vegetables."))
}
