// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Discipline is a competition category such as enduro or downhill.
type Discipline string

// EventLevel is the administrative tier of an event.
type EventLevel string

// Known event levels.
const (
	LevelWorldCup             EventLevel = "world_cup"
	LevelWorldSeries          EventLevel = "world_series"
	LevelEWS                  EventLevel = "ews"
	LevelNationalChampionship EventLevel = "national_championship"
	LevelSM                   EventLevel = "sm"
	LevelNational             EventLevel = "national"
	LevelRegional             EventLevel = "regional"
	LevelLocal                EventLevel = "local"
)

// DefaultLevelMultipliers holds the ranking multiplier per event level.
// Levels missing from the table rank at 1.00.
var DefaultLevelMultipliers = map[EventLevel]float64{ //nolint:gochecknoglobals // fixed lookup table
	LevelWorldCup:             1.50,
	LevelWorldSeries:          1.40,
	LevelEWS:                  1.30,
	LevelNationalChampionship: 1.25,
	LevelSM:                   1.25,
	LevelNational:             1.10,
	LevelRegional:             1.00,
	LevelLocal:                0.90,
}

// Multiplier returns the default ranking multiplier for the level.
func (l EventLevel) Multiplier() float64 {
	if m, ok := DefaultLevelMultipliers[EventLevel(strings.ToLower(string(l)))]; ok {
		return m
	}
	return 1.0
}

// FieldMultiplier maps the number of finishers of an event to its field-size multiplier.
func FieldMultiplier(participants int) float64 {
	switch {
	case participants >= 50:
		return 1.00
	case participants >= 40:
		return 0.95
	case participants >= 30:
		return 0.90
	case participants >= 20:
		return 0.85
	case participants >= 15:
		return 0.80
	case participants >= 10:
		return 0.75
	case participants >= 5:
		return 0.60
	default:
		return 0.50
	}
}

// ScoringMode selects how an event turns timing data into points.
type ScoringMode int

const (
	// SingleRun ranks a single recorded time.
	SingleRun ScoringMode = iota
	// StandardDualRun ranks the faster of two runs and resolves points once.
	StandardDualRun
	// SumScoredDualRun ranks and scores each run independently and sums the points (SweCUP).
	SumScoredDualRun
)

// String implements fmt.Stringer.
func (m ScoringMode) String() string {
	switch m {
	case StandardDualRun:
		return "dh_standard"
	case SumScoredDualRun:
		return "dh_swecup"
	default:
		return "single"
	}
}

// ParseScoringMode maps an event format string to a ScoringMode.
// Unrecognized formats score as SingleRun.
func ParseScoringMode(format string) ScoringMode {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "dh_standard", "dh", "downhill":
		return StandardDualRun
	case "dh_swecup", "swecup":
		return SumScoredDualRun
	default:
		return SingleRun
	}
}

// Event is a single competition date within a discipline.
type Event struct {
	ID           int64
	Name         string
	Date         time.Time // calendar date, UTC midnight
	Discipline   Discipline
	Level        EventLevel
	PointScaleID int64 // 0 when no scale is assigned yet
	Mode         ScoringMode
}

// Series groups events whose club results are aggregated together.
type Series struct {
	ID   int64
	Name string
	Year int
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last calendar day of t's month.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}
