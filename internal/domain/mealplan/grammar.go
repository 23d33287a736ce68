package mealplan

import "regexp"

// GrammarVersion pins the free-text grammar the parsers implement.
// Model output drifts; bump this when any pattern below changes so
// tests can pin exact behavior per version.
const GrammarVersion = "v1"

// The grammar. Day headings split the plan into segments, emphasized
// labels mark meals inside a segment, double-hash headers open grocery
// categories, and a dash token separates item name from quantity.
const (
	dayBoundaryExpr   = `Day \d`
	dayTokenExpr      = `Day\s*(\d)`
	mealLineExpr      = `\*\*(.*?)\*\*:?\s*(.*)`
	categorySplitExpr = `##\s*`
	groceryItemExpr   = `^-\s*(.+?)\s*[–-]\s*(.+)`
)

var (
	dayBoundaryPattern   = regexp.MustCompile(dayBoundaryExpr)
	dayTokenPattern      = regexp.MustCompile(dayTokenExpr)
	mealLinePattern      = regexp.MustCompile(mealLineExpr)
	categorySplitPattern = regexp.MustCompile(categorySplitExpr)
	groceryItemPattern   = regexp.MustCompile(groceryItemExpr)
)
