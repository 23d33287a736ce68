// Package nutrition contains the core domain logic for biometric profiles
// and derived calorie/macro targets.
package nutrition

import "strings"

// Numeric bounds for profile fields. Values outside these ranges are
// clamped during construction rather than rejected.
const (
	MinAge = 1
	MaxAge = 120

	MinWeightKg = 10.0
	MinHeightCm = 100.0

	MinBodyFatPercent = 5.0
	MaxBodyFatPercent = 50.0
)

// ProfileInput carries raw form or API values before normalization.
// BodyFatPercent is optional; nil means the caller did not supply one.
type ProfileInput struct {
	Age               int
	Gender            string
	WeightKg          float64
	HeightCm          float64
	BodyFatPercent    *float64
	ActivityLevel     string
	Goal              string
	DietPreferences   []string
	Allergies         string
	PreferredCuisines string
}

// Profile is the canonical biometric record every downstream computation
// reads from. It is immutable once constructed.
type Profile struct {
	age               int
	gender            Gender
	weightKg          float64
	heightCm          float64
	bodyFatPercent    float64
	activityLevel     ActivityLevel
	goal              Goal
	dietPreferences   []DietPreference
	allergies         string
	preferredCuisines string
}

// NewProfile assembles a Profile from raw input. Numeric fields are
// clamped to their declared ranges, enum fields fall back to their
// documented defaults, and a missing body-fat percentage takes
// defaultBodyFat. Construction never fails.
func NewProfile(input ProfileInput, defaultBodyFat float64) *Profile {
	bodyFat := defaultBodyFat
	if input.BodyFatPercent != nil {
		bodyFat = *input.BodyFatPercent
	}

	prefs := make([]DietPreference, 0, len(input.DietPreferences))
	seen := make(map[DietPreference]bool, len(input.DietPreferences))
	for _, raw := range input.DietPreferences {
		pref, ok := ParseDietPreference(raw)
		if !ok || seen[pref] {
			continue
		}
		seen[pref] = true
		prefs = append(prefs, pref)
	}

	return &Profile{
		age:               clampInt(input.Age, MinAge, MaxAge),
		gender:            ParseGender(input.Gender),
		weightKg:          clampMin(input.WeightKg, MinWeightKg),
		heightCm:          clampMin(input.HeightCm, MinHeightCm),
		bodyFatPercent:    clampFloat(bodyFat, MinBodyFatPercent, MaxBodyFatPercent),
		activityLevel:     ParseActivityLevel(input.ActivityLevel),
		goal:              ParseGoal(input.Goal),
		dietPreferences:   prefs,
		allergies:         strings.TrimSpace(input.Allergies),
		preferredCuisines: strings.TrimSpace(input.PreferredCuisines),
	}
}

// Age returns the profile's age in years
func (p *Profile) Age() int {
	return p.age
}

// Gender returns the profile's gender
func (p *Profile) Gender() Gender {
	return p.gender
}

// WeightKg returns the profile's weight in kilograms
func (p *Profile) WeightKg() float64 {
	return p.weightKg
}

// HeightCm returns the profile's height in centimeters
func (p *Profile) HeightCm() float64 {
	return p.heightCm
}

// BodyFatPercent returns the profile's body fat percentage
func (p *Profile) BodyFatPercent() float64 {
	return p.bodyFatPercent
}

// ActivityLevel returns the profile's activity level
func (p *Profile) ActivityLevel() ActivityLevel {
	return p.activityLevel
}

// Goal returns the profile's health goal
func (p *Profile) Goal() Goal {
	return p.goal
}

// DietPreferences returns a copy of the profile's diet preference tags
func (p *Profile) DietPreferences() []DietPreference {
	out := make([]DietPreference, len(p.dietPreferences))
	copy(out, p.dietPreferences)
	return out
}

// Allergies returns the profile's free-text allergy note
func (p *Profile) Allergies() string {
	return p.allergies
}

// PreferredCuisines returns the profile's free-text cuisine note
func (p *Profile) PreferredCuisines() string {
	return p.preferredCuisines
}

// LeanBodyMassKg estimates lean mass from weight and body fat.
func (p *Profile) LeanBodyMassKg() float64 {
	return p.weightKg * (1 - p.bodyFatPercent/100)
}

// DietPreferenceText renders the preference tags for prompts, "None"
// when no tag is set.
func (p *Profile) DietPreferenceText() string {
	if len(p.dietPreferences) == 0 {
		return "None"
	}
	parts := make([]string, len(p.dietPreferences))
	for i, pref := range p.dietPreferences {
		parts[i] = string(pref)
	}
	return strings.Join(parts, ", ")
}

// AllergyText renders the allergy note for prompts, "None" when empty.
func (p *Profile) AllergyText() string {
	if p.allergies == "" {
		return "None"
	}
	return p.allergies
}

// CuisineText renders the cuisine note for prompts, "Any" when empty.
func (p *Profile) CuisineText() string {
	if p.preferredCuisines == "" {
		return "Any"
	}
	return p.preferredCuisines
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampMin(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}
