// Package level maps cumulative earned points to levels. The table is static
// configuration; thresholds are on gross lifetime earnings, so undoing a
// completion never demotes anyone.
package level

import "github.com/tidebrook/choretally/internal/model"

// Levels is ordered by ascending threshold. Level 1 at threshold 0 is the
// floor for every user, including one with an empty ledger.
var Levels = []model.LevelDefinition{
	{Level: 1, Title: "Newcomer", PointsRequired: 0},
	{Level: 2, Title: "Helper", PointsRequired: 50},
	{Level: 3, Title: "Contributor", PointsRequired: 150},
	{Level: 4, Title: "Achiever", PointsRequired: 300},
	{Level: 5, Title: "Star", PointsRequired: 500},
	{Level: 6, Title: "Superstar", PointsRequired: 750},
	{Level: 7, Title: "Champion", PointsRequired: 1100},
	{Level: 8, Title: "Hero", PointsRequired: 1500},
	{Level: 9, Title: "Legend", PointsRequired: 2000},
	{Level: 10, Title: "Mythic", PointsRequired: 3000},
}

// FromPoints returns the highest level whose threshold is at or below the
// given total. Never fails; negative input maps to level 1.
func FromPoints(totalEarned int) model.LevelDefinition {
	current := Levels[0]
	for _, l := range Levels {
		if totalEarned >= l.PointsRequired {
			current = l
		}
	}
	return current
}

// Next returns the definition after the given level, or nil at the maximum.
func Next(current int) *model.LevelDefinition {
	for i, l := range Levels {
		if l.Level == current && i+1 < len(Levels) {
			next := Levels[i+1]
			return &next
		}
	}
	return nil
}

// Progress returns the percentage [0,100] of the way from the current
// threshold to the next one. A malformed table where the next threshold is
// not above the current one clamps to 100.
func Progress(points, currentThreshold, nextThreshold int) int {
	if nextThreshold <= currentThreshold {
		return 100
	}
	pct := (points - currentThreshold) * 100 / (nextThreshold - currentThreshold)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
