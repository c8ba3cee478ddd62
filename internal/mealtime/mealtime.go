// Package mealtime maps transaction timestamps to a meal slot in the
// business timezone (UTC+7). The caller's local timezone never factors
// into the classification.
package mealtime

import "time"

// MealTime is the slot a food purchase is logged against.
type MealTime string

const (
	Breakfast MealTime = "breakfast"
	Lunch     MealTime = "lunch"
	Dinner    MealTime = "dinner"
	Snack     MealTime = "snack"
)

// businessZone is fixed at UTC+7 regardless of server locale.
var businessZone = time.FixedZone("UTC+7", 7*60*60)

// BusinessTime converts a timestamp into the business timezone. Used
// wherever a calendar date must be derived from an instant.
func BusinessTime(t time.Time) time.Time {
	return t.In(businessZone)
}

// Classify maps a timestamp to a meal slot by its hour of day in the
// business timezone. Buckets are inclusive-lower, exclusive-upper:
// [06,11) breakfast, [11,16) lunch, [16,22) dinner, otherwise snack.
func Classify(t time.Time) MealTime {
	hour := t.In(businessZone).Hour()
	switch {
	case hour >= 6 && hour < 11:
		return Breakfast
	case hour >= 11 && hour < 16:
		return Lunch
	case hour >= 16 && hour < 22:
		return Dinner
	default:
		return Snack
	}
}
