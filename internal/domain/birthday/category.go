package birthday

import "strings"

// Category is the relationship category of a birthday record.
// The set is closed; unrecognized input normalizes to CategoryOther.
type Category string

const (
	CategoryLove     Category = "love"
	CategoryFamily   Category = "family"
	CategoryRelative Category = "relative"
	CategoryWork     Category = "work"
	CategoryFriend   Category = "friend"
	CategoryOther    Category = "other"
)

// Categories lists all known categories in display order.
var Categories = []Category{
	CategoryLove,
	CategoryFamily,
	CategoryRelative,
	CategoryWork,
	CategoryFriend,
	CategoryOther,
}

// CategoryInfo is the display form of a category, consumed by the transport layer.
type CategoryInfo struct {
	Label  string
	Symbol string
}

var categoryInfo = map[Category]CategoryInfo{
	CategoryLove:     {Label: "Love", Symbol: "💕"},
	CategoryFamily:   {Label: "Family", Symbol: "👨‍👩‍👧‍👦"},
	CategoryRelative: {Label: "Relative", Symbol: "👥"},
	CategoryWork:     {Label: "Work", Symbol: "💼"},
	CategoryFriend:   {Label: "Friend", Symbol: "👫"},
	CategoryOther:    {Label: "Other", Symbol: "🌟"},
}

// NormalizeCategory maps free-form input to a known category.
// Matching is case-insensitive; anything unrecognized becomes CategoryOther.
func NormalizeCategory(input string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(input)))
	if _, ok := categoryInfo[c]; ok {
		return c
	}
	return CategoryOther
}

// DescribeCategory returns the display label and symbol for a category.
func DescribeCategory(c Category) CategoryInfo {
	if info, ok := categoryInfo[c]; ok {
		return info
	}
	return categoryInfo[CategoryOther]
}
