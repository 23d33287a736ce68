// Package mealplan contains the plan and grocery text grammar: the
// structured records extracted from free-text model output and the
// prompt templates that request it.
package mealplan

import "strings"

// PlanDays is the number of days a full plan covers.
const PlanDays = 7

// MealEntry is one labeled meal line extracted from a day's body text.
// Description stays raw; macro figures embedded in it are not parsed.
type MealEntry struct {
	MealType    string
	Description string
}

// HasDescription reports whether the entry carries any text after the
// label. Image lookup and rendering skip entries without one.
func (m MealEntry) HasDescription() bool {
	return strings.TrimSpace(m.Description) != ""
}

// DayPlan is one day segment of the plan: its heading line, the raw
// body below it, and the meal entries matched within the body.
type DayPlan struct {
	Heading string
	Body    string
	Meals   []MealEntry
}

// Text reconstructs the segment as heading plus body, the inverse of
// the parser's segmentation.
func (d DayPlan) Text() string {
	if d.Body == "" {
		return d.Heading
	}
	return d.Heading + "\n" + d.Body
}

// GroceryItem is one categorized grocery line. Quantity may be empty
// when the source line carried no separator.
type GroceryItem struct {
	Category string
	Item     string
	Quantity string
}
