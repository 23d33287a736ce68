package nutrition

import (
	"sort"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// CalculatorTestSuite provides a test suite for target derivation
type CalculatorTestSuite struct {
	suite.Suite
	calculator *Calculator
}

// SetupSuite initializes the test suite
func (suite *CalculatorTestSuite) SetupSuite() {
	gofakeit.Seed(11)
	suite.calculator = NewCalculator(DefaultActivityFactors(), 50, 60, 30)
}

func (suite *CalculatorTestSuite) profile(input ProfileInput) *Profile {
	return NewProfile(input, 10)
}

// TestBasalMetabolicRate tests the Mifflin-St Jeor branches
func (suite *CalculatorTestSuite) TestBasalMetabolicRate() {
	suite.Run("MaleProfile_ShouldAddFiveOffset", func() {
		profile := suite.profile(ProfileInput{
			Age: 20, Gender: "Male", WeightKg: 50, HeightCm: 170,
			ActivityLevel: "Sedentary", Goal: "Maintain Weight",
		})

		targets := suite.calculator.Calculate(profile)

		// 10*50 + 6.25*170 - 5*20 + 5
		assert.InDelta(suite.T(), 1467.5, targets.BMR, 1e-9)
	})

	suite.Run("FemaleProfile_ShouldSubtract161Offset", func() {
		profile := suite.profile(ProfileInput{
			Age: 20, Gender: "Female", WeightKg: 50, HeightCm: 170,
			ActivityLevel: "Sedentary", Goal: "Maintain Weight",
		})

		targets := suite.calculator.Calculate(profile)

		// 10*50 + 6.25*170 - 5*20 - 161
		assert.InDelta(suite.T(), 1301.5, targets.BMR, 1e-9)
	})

	suite.Run("OtherProfile_ShouldApplyNoOffset", func() {
		profile := suite.profile(ProfileInput{
			Age: 20, Gender: "Other", WeightKg: 50, HeightCm: 170,
			ActivityLevel: "Sedentary", Goal: "Maintain Weight",
		})

		targets := suite.calculator.Calculate(profile)

		assert.InDelta(suite.T(), 1462.5, targets.BMR, 1e-9)
	})
}

// TestEnergyTargets tests TDEE and calorie goal derivation
func (suite *CalculatorTestSuite) TestEnergyTargets() {
	suite.Run("SedentaryMaintain_ShouldKeepTDEE", func() {
		profile := suite.profile(ProfileInput{
			Age: 20, Gender: "Male", WeightKg: 50, HeightCm: 170,
			ActivityLevel: "Sedentary", Goal: "Maintain Weight",
		})

		targets := suite.calculator.Calculate(profile)

		assert.InDelta(suite.T(), 1467.5*1.2, targets.TDEE, 1e-9)
		assert.InDelta(suite.T(), targets.TDEE, targets.CalorieGoal, 1e-9)
	})

	suite.Run("FatLossGoal_ShouldCutCaloriesTo70Percent", func() {
		profile := suite.profile(ProfileInput{
			Age: 20, Gender: "Male", WeightKg: 50, HeightCm: 170,
			ActivityLevel: "Sedentary", Goal: "Fat Loss",
		})

		targets := suite.calculator.Calculate(profile)

		assert.InDelta(suite.T(), targets.TDEE*0.7, targets.CalorieGoal, 1e-9)
	})

	suite.Run("MuscleGainGoal_ShouldKeepTDEE", func() {
		profile := suite.profile(ProfileInput{
			Age: 30, Gender: "Female", WeightKg: 65, HeightCm: 165,
			ActivityLevel: "Active", Goal: "Muscle Gain",
		})

		targets := suite.calculator.Calculate(profile)

		assert.InDelta(suite.T(), targets.TDEE, targets.CalorieGoal, 1e-9)
	})

	suite.Run("EachActivityLevel_ShouldUseItsFactor", func() {
		expected := map[ActivityLevel]float64{
			ActivityLevelSedentary:   1.2,
			ActivityLevelLight:       1.375,
			ActivityLevelModerate:    1.55,
			ActivityLevelActive:      1.725,
			ActivityLevelExtraActive: 1.9,
		}

		for level, factor := range expected {
			profile := suite.profile(ProfileInput{
				Age: 25, Gender: "Other", WeightKg: 70, HeightCm: 175,
				ActivityLevel: string(level), Goal: "Maintain Weight",
			})

			targets := suite.calculator.Calculate(profile)

			assert.InDelta(suite.T(), targets.BMR*factor, targets.TDEE, 1e-9,
				"level %s", level)
		}
	})
}

// TestMacroTargets tests protein, fat, fiber and sugar derivation
func (suite *CalculatorTestSuite) TestMacroTargets() {
	suite.Run("ProteinTarget_ShouldBe1Point8PerLeanKg", func() {
		profile := suite.profile(ProfileInput{
			Age: 20, Gender: "Male", WeightKg: 50, HeightCm: 170,
			ActivityLevel: "Sedentary", Goal: "Maintain Weight",
		})

		targets := suite.calculator.Calculate(profile)

		// 50kg at the 10% default body fat: lean mass 45kg
		assert.InDelta(suite.T(), 81.0, targets.ProteinTargetG, 1e-9)
	})

	suite.Run("ProteinTarget_ShouldRoundToOneDecimal", func() {
		bodyFat := 22.5
		profile := suite.profile(ProfileInput{
			Age: 41, Gender: "Female", WeightKg: 63.7, HeightCm: 162,
			BodyFatPercent: &bodyFat,
			ActivityLevel:  "Light", Goal: "Maintain Weight",
		})

		targets := suite.calculator.Calculate(profile)

		// 63.7 * 0.775 * 1.8 = 88.8615 rounds to 88.9
		assert.InDelta(suite.T(), 88.9, targets.ProteinTargetG, 1e-9)
	})

	suite.Run("FixedConstants_ShouldComeFromCalculator", func() {
		profile := suite.profile(ProfileInput{
			Age: 20, Gender: "Male", WeightKg: 50, HeightCm: 170,
			ActivityLevel: "Sedentary", Goal: "Maintain Weight",
		})

		targets := suite.calculator.Calculate(profile)

		assert.Equal(suite.T(), 50.0, targets.FatMinG)
		assert.Equal(suite.T(), 60.0, targets.FatMaxG)
		assert.Equal(suite.T(), 30.0, targets.FiberTargetG)
	})

	suite.Run("SugarLimit_ShouldBeSixPercentOfCaloriesOverFour", func() {
		profile := suite.profile(ProfileInput{
			Age: 20, Gender: "Male", WeightKg: 50, HeightCm: 170,
			ActivityLevel: "Sedentary", Goal: "Maintain Weight",
		})

		targets := suite.calculator.Calculate(profile)

		// calorie goal 1761: 1761 * 0.06 / 4 = 26.415 rounds to 26
		assert.Equal(suite.T(), 26, targets.SugarLimitG)
	})

	suite.Run("BMI_ShouldUseHeightSquared", func() {
		profile := suite.profile(ProfileInput{
			Age: 20, Gender: "Male", WeightKg: 50, HeightCm: 170,
			ActivityLevel: "Sedentary", Goal: "Maintain Weight",
		})

		targets := suite.calculator.Calculate(profile)

		assert.InDelta(suite.T(), 50/(1.7*1.7), targets.BMI, 1e-9)
	})
}

// TestProteinMonotonicity tests that protein grows with lean body mass
func (suite *CalculatorTestSuite) TestProteinMonotonicity() {
	type sample struct {
		lean    float64
		protein float64
	}

	samples := make([]sample, 0, 200)
	for i := 0; i < 200; i++ {
		bodyFat := gofakeit.Float64Range(MinBodyFatPercent, MaxBodyFatPercent)
		profile := suite.profile(ProfileInput{
			Age:            gofakeit.Number(MinAge, MaxAge),
			Gender:         gofakeit.RandomString([]string{"Male", "Female", "Other"}),
			WeightKg:       gofakeit.Float64Range(MinWeightKg, 200),
			HeightCm:       gofakeit.Float64Range(MinHeightCm, 220),
			BodyFatPercent: &bodyFat,
			ActivityLevel:  gofakeit.RandomString([]string{"Sedentary", "Light", "Moderate", "Active", "Extra_Active"}),
			Goal:           gofakeit.RandomString([]string{"Fat Loss", "Muscle Gain", "Maintain Weight"}),
		})

		targets := suite.calculator.Calculate(profile)
		samples = append(samples, sample{lean: profile.LeanBodyMassKg(), protein: targets.ProteinTargetG})
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].lean < samples[j].lean })
	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(suite.T(), samples[i].protein, samples[i-1].protein,
			"protein must not decrease as lean mass grows")
	}
}

// TestCalculatorConstruction tests fallbacks for bad configuration
func (suite *CalculatorTestSuite) TestCalculatorConstruction() {
	suite.Run("NilFactorTable_ShouldFallBackToDefaults", func() {
		calc := NewCalculator(nil, 0, 0, 0)

		assert.InDelta(suite.T(), 1.55, calc.ActivityFactor(ActivityLevelModerate), 1e-9)
		assert.InDelta(suite.T(), 1.9, calc.ActivityFactor(ActivityLevelExtraActive), 1e-9)
	})

	suite.Run("NonPositiveFactors_ShouldBeDropped", func() {
		calc := NewCalculator(map[string]float64{"moderate": -1}, 50, 60, 30)

		assert.InDelta(suite.T(), 1.55, calc.ActivityFactor(ActivityLevelModerate), 1e-9)
	})

	suite.Run("UnknownLevel_ShouldResolveThroughModerate", func() {
		calc := NewCalculator(map[string]float64{"moderate": 1.4}, 50, 60, 30)

		assert.InDelta(suite.T(), 1.4, calc.ActivityFactor(ActivityLevel("Superhuman")), 1e-9)
	})

	suite.Run("MixedCaseFactorKeys_ShouldStillResolve", func() {
		calc := NewCalculator(map[string]float64{"Extra Active": 2.0}, 50, 60, 30)

		assert.InDelta(suite.T(), 2.0, calc.ActivityFactor(ActivityLevelExtraActive), 1e-9)
	})
}

// TestDeterminism tests that calculation is a pure function
func (suite *CalculatorTestSuite) TestDeterminism() {
	profile := suite.profile(ProfileInput{
		Age: 33, Gender: "Female", WeightKg: 58.2, HeightCm: 168.5,
		ActivityLevel: "Moderate", Goal: "Fat Loss",
		DietPreferences: []string{"Vegetarian"},
	})

	first := suite.calculator.Calculate(profile)
	second := suite.calculator.Calculate(profile)

	require.Equal(suite.T(), first, second)
}

// TestCalculatorTestSuite runs the calculator test suite
func TestCalculatorTestSuite(t *testing.T) {
	suite.Run(t, new(CalculatorTestSuite))
}
