package nutrition

import "strings"

// Value Objects - Immutable objects that describe aspects of the domain

// Gender determines the Mifflin-St Jeor offset used for BMR.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// ParseGender maps a raw form or API value to a Gender.
// Unrecognized values fall back to GenderOther, which carries no BMR offset.
func ParseGender(raw string) Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	default:
		return GenderOther
	}
}

// IsValid reports whether the gender is one of the known values
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// ActivityLevel keys the TDEE multiplier table.
type ActivityLevel string

const (
	ActivityLevelSedentary   ActivityLevel = "Sedentary"
	ActivityLevelLight       ActivityLevel = "Light"
	ActivityLevelModerate    ActivityLevel = "Moderate"
	ActivityLevelActive      ActivityLevel = "Active"
	ActivityLevelExtraActive ActivityLevel = "Extra_Active"
)

// ParseActivityLevel maps a raw value to an ActivityLevel.
// Unrecognized values fall back to ActivityLevelModerate.
func ParseActivityLevel(raw string) ActivityLevel {
	switch normalizeKey(raw) {
	case "sedentary":
		return ActivityLevelSedentary
	case "light", "lightly_active":
		return ActivityLevelLight
	case "moderate", "moderately_active":
		return ActivityLevelModerate
	case "active", "very_active":
		return ActivityLevelActive
	case "extra_active", "extra":
		return ActivityLevelExtraActive
	default:
		return ActivityLevelModerate
	}
}

// IsValid reports whether the activity level is one of the known values
func (a ActivityLevel) IsValid() bool {
	switch a {
	case ActivityLevelSedentary, ActivityLevelLight, ActivityLevelModerate,
		ActivityLevelActive, ActivityLevelExtraActive:
		return true
	}
	return false
}

// Key returns the lowercase lookup key used by the activity factor table.
func (a ActivityLevel) Key() string {
	return normalizeKey(string(a))
}

// Goal represents the user's health goal.
// Only GoalFatLoss changes the calorie target; the others keep TDEE as-is.
type Goal string

const (
	GoalFatLoss    Goal = "Fat Loss"
	GoalMuscleGain Goal = "Muscle Gain"
	GoalMaintain   Goal = "Maintain Weight"
)

// ParseGoal maps a raw value to a Goal.
// Unrecognized values fall back to GoalMaintain.
func ParseGoal(raw string) Goal {
	switch normalizeKey(raw) {
	case "fat_loss", "fatloss", "weight_loss", "cut":
		return GoalFatLoss
	case "muscle_gain", "musclegain", "bulk":
		return GoalMuscleGain
	case "maintain_weight", "maintain", "maintenance":
		return GoalMaintain
	default:
		return GoalMaintain
	}
}

// IsValid reports whether the goal is one of the known values
func (g Goal) IsValid() bool {
	switch g {
	case GoalFatLoss, GoalMuscleGain, GoalMaintain:
		return true
	}
	return false
}

// DietPreference tags a dietary style the plan should honor.
type DietPreference string

const (
	DietPreferenceVegan       DietPreference = "Vegan"
	DietPreferenceVegetarian  DietPreference = "Vegetarian"
	DietPreferenceKeto        DietPreference = "Keto"
	DietPreferenceLowCarb     DietPreference = "Low-Carb"
	DietPreferenceHighProtein DietPreference = "High-Protein"
)

// KnownDietPreferences lists the selectable diet tags in display order.
func KnownDietPreferences() []DietPreference {
	return []DietPreference{
		DietPreferenceVegan,
		DietPreferenceVegetarian,
		DietPreferenceKeto,
		DietPreferenceLowCarb,
		DietPreferenceHighProtein,
	}
}

// ParseDietPreference maps a raw value to a DietPreference.
// The boolean reports whether the value matched a known tag.
func ParseDietPreference(raw string) (DietPreference, bool) {
	switch normalizeKey(raw) {
	case "vegan":
		return DietPreferenceVegan, true
	case "vegetarian":
		return DietPreferenceVegetarian, true
	case "keto", "ketogenic":
		return DietPreferenceKeto, true
	case "low_carb", "lowcarb":
		return DietPreferenceLowCarb, true
	case "high_protein", "highprotein":
		return DietPreferenceHighProtein, true
	default:
		return "", false
	}
}

// normalizeKey lowercases a raw enum value and collapses separators so
// "Extra Active", "extra-active" and "Extra_Active" all key identically.
func normalizeKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}
