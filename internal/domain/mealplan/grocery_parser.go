package mealplan

import "strings"

// ParseGroceryList splits a grocery response into categorized line
// items. Category order follows header order in the source text; item
// order within a category follows line order. Sections that are empty
// after stripping are skipped.
func ParseGroceryList(text string) []GroceryItem {
	sections := categorySplitPattern.Split(normalizeNewlines(text), -1)
	items := make([]GroceryItem, 0, 32)
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		lines := strings.Split(section, "\n")
		category := strings.TrimSpace(lines[0])
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) == "" {
				continue
			}
			name, quantity := parseGroceryLine(line)
			items = append(items, GroceryItem{
				Category: category,
				Item:     name,
				Quantity: quantity,
			})
		}
	}
	return items
}

// parseGroceryLine matches "- name – quantity" with an en-dash or
// hyphen separator. Lines that do not match keep their full stripped
// text as the item name with an empty quantity.
func parseGroceryLine(line string) (string, string) {
	if match := groceryItemPattern.FindStringSubmatch(line); match != nil {
		return strings.TrimSpace(match[1]), strings.TrimSpace(match[2])
	}
	return strings.TrimLeft(strings.TrimSpace(line), "- "), ""
}
