package mealplan

import "strings"

// ParsePlan segments a full plan text into DayPlan records. The text
// splits immediately before each day heading so the heading token
// stays with the segment that follows; the first line of a segment is
// its heading, the rest its body. A body with no emphasized meal
// labels yields a DayPlan with empty Meals, never an error.
func ParsePlan(text string) []DayPlan {
	trimmed := strings.TrimSpace(normalizeNewlines(text))
	if trimmed == "" {
		return nil
	}

	segments := splitBeforeDayHeadings(trimmed)
	days := make([]DayPlan, 0, len(segments))
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		lines := strings.Split(segment, "\n")
		heading := strings.TrimSpace(lines[0])
		body := strings.Join(lines[1:], "\n")
		days = append(days, DayPlan{
			Heading: heading,
			Body:    body,
			Meals:   parseMealLines(body),
		})
	}
	return days
}

// DistinctDayCount counts the distinct single-digit day numbers
// referenced anywhere in the text. Callers warn, never fail, when the
// count falls short of PlanDays.
func DistinctDayCount(text string) int {
	seen := make(map[string]bool)
	for _, match := range dayTokenPattern.FindAllStringSubmatch(text, -1) {
		seen[match[1]] = true
	}
	return len(seen)
}

// splitBeforeDayHeadings splits on zero-width boundaries in front of
// every day heading match. The regexp engine has no lookahead, so the
// boundaries come from match offsets instead.
func splitBeforeDayHeadings(text string) []string {
	locs := dayBoundaryPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	segments := make([]string, 0, len(locs)+1)
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			segments = append(segments, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	segments = append(segments, text[prev:])
	return segments
}

// parseMealLines extracts every emphasized-label match in the body.
// Entries with empty descriptions are kept; display and image lookup
// decide what to do with them.
func parseMealLines(body string) []MealEntry {
	matches := mealLinePattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	meals := make([]MealEntry, 0, len(matches))
	for _, match := range matches {
		meals = append(meals, MealEntry{
			MealType:    match[1],
			Description: match[2],
		})
	}
	return meals
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}
