package model

import "time"

// Club points percentages by a rider's rank inside their club and class.
const (
	ClubShareFirst  = 100
	ClubShareSecond = 50
	ClubShareOther  = 0
)

// ClubShare returns the percentage of original points a club keeps for the rider ranked rank.
func ClubShare(rank int) int {
	switch rank {
	case 1:
		return ClubShareFirst
	case 2:
		return ClubShareSecond
	default:
		return ClubShareOther
	}
}

// ResultUpdate rewrites placement and points on one result row.
type ResultUpdate struct {
	ResultID   int64
	ClassID    int64
	Position   int
	Points     float64
	Run1Points float64
	Run2Points float64
}

// RankingPoint is one rider's weighted ranking points from one event.
type RankingPoint struct {
	RiderID          int64
	EventID          int64
	Discipline       Discipline
	EventDate        time.Time
	BasePoints       float64
	FieldMultiplier  float64
	LevelMultiplier  float64
	WeightedPoints   float64
	ParticipantCount int
	ComputedAt       time.Time
	Generation       string
}

// RankingSnapshot is one rider's row in a monthly ranking.
type RankingSnapshot struct {
	RiderID            int64
	Discipline         Discipline
	SnapshotDate       time.Time // first day of the month
	TotalRankingPoints float64
	PointsLast12Months float64
	PointsMonths13To24 float64
	EventsCount        int
	RankingPosition    int
	PreviousPosition   *int
	PositionChange     *int
	Generation         string
}

// ClubPointsDetail is one rider's contribution to a club in one event and class.
type ClubPointsDetail struct {
	ClubID            int64
	SeriesID          int64
	EventID           int64
	RiderID           int64
	ClassID           int64
	OriginalPoints    float64
	PercentageApplied int
	ClubPoints        float64
	RiderRankInClub   int
}

// ClubStanding is a club's aggregate over a series.
type ClubStanding struct {
	ClubID            int64
	SeriesID          int64
	TotalPoints       float64
	TotalParticipants int
	EventsCount       int
	BestEventPoints   float64
	Ranking           int
	Generation        string
}
