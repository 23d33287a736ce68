package nutrition

import "math"

// Mifflin-St Jeor gender offsets and fixed derivation constants.
const (
	bmrOffsetMale   = 5.0
	bmrOffsetFemale = -161.0

	fatLossCalorieFactor = 0.7
	proteinPerLeanKg     = 1.8
	sugarCalorieShare    = 0.06
	kcalPerGramSugar     = 4.0
)

// DefaultActivityFactors returns the five-level TDEE multiplier table.
// Deployments can override it through configuration.
func DefaultActivityFactors() map[string]float64 {
	return map[string]float64{
		ActivityLevelSedentary.Key():   1.2,
		ActivityLevelLight.Key():       1.375,
		ActivityLevelModerate.Key():    1.55,
		ActivityLevelActive.Key():      1.725,
		ActivityLevelExtraActive.Key(): 1.9,
	}
}

// Calculator derives Targets from a Profile. The activity factor table
// and the fixed fat/fiber constants are injected so deployments can tune
// them without touching the formulas.
type Calculator struct {
	activityFactors map[string]float64
	fatMinG         float64
	fatMaxG         float64
	fiberTargetG    float64
}

// NewCalculator builds a Calculator. A nil or empty factor table falls
// back to DefaultActivityFactors; non-positive macro constants fall back
// to the standard 50/60/30 gram figures.
func NewCalculator(activityFactors map[string]float64, fatMinG, fatMaxG, fiberTargetG float64) *Calculator {
	factors := make(map[string]float64, len(activityFactors))
	for key, factor := range activityFactors {
		if factor > 0 {
			factors[normalizeKey(key)] = factor
		}
	}
	if len(factors) == 0 {
		factors = DefaultActivityFactors()
	}
	if fatMinG <= 0 {
		fatMinG = 50
	}
	if fatMaxG <= 0 {
		fatMaxG = 60
	}
	if fiberTargetG <= 0 {
		fiberTargetG = 30
	}
	return &Calculator{
		activityFactors: factors,
		fatMinG:         fatMinG,
		fatMaxG:         fatMaxG,
		fiberTargetG:    fiberTargetG,
	}
}

// Calculate derives the full target set from a profile. Pure function:
// the same profile always yields the same targets.
func (c *Calculator) Calculate(profile *Profile) Targets {
	bmr := c.basalMetabolicRate(profile)
	tdee := bmr * c.ActivityFactor(profile.ActivityLevel())

	calorieGoal := tdee
	if profile.Goal() == GoalFatLoss {
		calorieGoal = tdee * fatLossCalorieFactor
	}

	return Targets{
		BMI:            c.bodyMassIndex(profile),
		BMR:            bmr,
		TDEE:           tdee,
		CalorieGoal:    calorieGoal,
		ProteinTargetG: roundTo1(profile.LeanBodyMassKg() * proteinPerLeanKg),
		FatMinG:        c.fatMinG,
		FatMaxG:        c.fatMaxG,
		FiberTargetG:   c.fiberTargetG,
		SugarLimitG:    int(math.Round(calorieGoal * sugarCalorieShare / kcalPerGramSugar)),
	}
}

// ActivityFactor resolves the TDEE multiplier for a level. Unknown
// levels resolve through the moderate entry so the result is always
// positive.
func (c *Calculator) ActivityFactor(level ActivityLevel) float64 {
	if factor, ok := c.activityFactors[level.Key()]; ok {
		return factor
	}
	if factor, ok := c.activityFactors[ActivityLevelModerate.Key()]; ok {
		return factor
	}
	return DefaultActivityFactors()[ActivityLevelModerate.Key()]
}

// basalMetabolicRate applies Mifflin-St Jeor with the gender offset.
func (c *Calculator) basalMetabolicRate(profile *Profile) float64 {
	bmr := 10*profile.WeightKg() + 6.25*profile.HeightCm() - 5*float64(profile.Age())
	switch profile.Gender() {
	case GenderMale:
		bmr += bmrOffsetMale
	case GenderFemale:
		bmr += bmrOffsetFemale
	}
	return bmr
}

// bodyMassIndex guards against a zero height even though profile
// clamping makes that unreachable in practice.
func (c *Calculator) bodyMassIndex(profile *Profile) float64 {
	heightM := profile.HeightCm() / 100
	if heightM <= 0 {
		return 0
	}
	return profile.WeightKg() / (heightM * heightM)
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}
