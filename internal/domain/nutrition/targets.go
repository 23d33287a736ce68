package nutrition

// Targets contains the calorie and macro figures derived from a Profile.
// Computed once per submission, read-only afterward.
type Targets struct {
	BMI            float64
	BMR            float64
	TDEE           float64
	CalorieGoal    float64
	ProteinTargetG float64 // in grams, 1 decimal
	FatMinG        float64 // in grams
	FatMaxG        float64 // in grams
	FiberTargetG   float64 // in grams
	SugarLimitG    int     // in grams, 6% of calories at 4 kcal/g
}
