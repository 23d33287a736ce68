package mealplan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mealsmith/v2/internal/domain/nutrition"
)

// Prompts are rendered as two ranged requests because a single 7-day
// completion tends to run past model output limits.
const (
	firstHalfSuffix  = "\n\nPlease generate meal plans for Day 1 to Day 3 only."
	secondHalfSuffix = "\n\nPlease generate meal plans for Day 4 to Day 7 only."
)

// BuildPlanPrompt renders the profile and targets into the full
// 7-day meal plan request.
func BuildPlanPrompt(profile *nutrition.Profile, targets nutrition.Targets) string {
	var b strings.Builder
	b.WriteString("Create a personalized **7-day meal plan** for the following individual:\n")
	fmt.Fprintf(&b, "- Age: %d\n", profile.Age())
	fmt.Fprintf(&b, "- Gender: %s\n", profile.Gender())
	fmt.Fprintf(&b, "- Weight: %s kg\n", formatNumber(profile.WeightKg()))
	fmt.Fprintf(&b, "- Height: %s cm\n", formatNumber(profile.HeightCm()))
	fmt.Fprintf(&b, "- Body Fat %%: %s%%\n", formatNumber(profile.BodyFatPercent()))
	fmt.Fprintf(&b, "- Activity Level: %s\n", profile.ActivityLevel())
	fmt.Fprintf(&b, "- Goal: %s\n", profile.Goal())
	fmt.Fprintf(&b, "- Diet Preferences: %s\n", profile.DietPreferenceText())
	fmt.Fprintf(&b, "- Allergies: %s\n", profile.AllergyText())
	fmt.Fprintf(&b, "- Preferred Cuisines: %s\n", profile.CuisineText())
	fmt.Fprintf(&b, "- Daily Calorie Goal: approximately %.0f Kcal\n", targets.CalorieGoal)
	b.WriteString("\nNutrition Guidelines (strictly follow):\n")
	fmt.Fprintf(&b, "- **Protein**: Minimum **%.1f grams/day**, based on lean body mass\n", targets.ProteinTargetG)
	fmt.Fprintf(&b, "- **Fat**: Between **%s–%s grams/day**\n", formatNumber(targets.FatMinG), formatNumber(targets.FatMaxG))
	fmt.Fprintf(&b, "- **Fiber**: Minimum **%s grams/day**\n", formatNumber(targets.FiberTargetG))
	fmt.Fprintf(&b, "- **Added Sugar**: No more than **%d grams/day** (6%% of daily calorie intake)\n", targets.SugarLimitG)
	b.WriteString("Meal Plan Rules:\n")
	b.WriteString("- provide meal plan for 7 days with **Breakfast, Lunch, Dinner, and Snacks** for each day\n")
	b.WriteString("- Include for **each meal**: calories, protein, carbs, fats, fiber, added sugar\n")
	b.WriteString("- Use diet preferences, allergies, and preferred cuisines to personalize meals\n")
	b.WriteString("- Ensure meals are nutritionally balanced\n")
	b.WriteString(`- Format clearly with "Day 1", "Day 2",...., "Day 7" etc.`)
	return b.String()
}

// BuildPlanPartPrompts returns the Day 1-3 and Day 4-7 requests built
// from the same base prompt.
func BuildPlanPartPrompts(profile *nutrition.Profile, targets nutrition.Targets) (string, string) {
	base := BuildPlanPrompt(profile, targets)
	return base + firstHalfSuffix, base + secondHalfSuffix
}

// CombinePlanParts joins the two ranged completions into the full plan
// text the parsers consume.
func CombinePlanParts(first, second string) string {
	return strings.TrimSpace(first) + "\n\n" + strings.TrimSpace(second)
}

// BuildGroceryPrompt renders the grocery extraction request for a
// generated plan.
func BuildGroceryPrompt(planText string) string {
	var b strings.Builder
	b.WriteString("Here is a 7-day diet plan:\n")
	b.WriteString(planText)
	b.WriteString("\n\nPlease extract a grocery shopping list for this 7-day plan. Group items by categories such as:\n")
	b.WriteString("- Vegetables\n")
	b.WriteString("- Fruits\n")
	b.WriteString("- Grains\n")
	b.WriteString("- Dairy\n")
	b.WriteString("- Proteins\n")
	b.WriteString("- Spices & Condiments\n")
	b.WriteString("- Others\n")
	b.WriteString("\nInclude quantities where possible. Format it as a readable, bullet-point list grouped by category with headers like ## Vegetables.")
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
