package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Status is the finishing status of a result row.
type Status string

// Result statuses.
const (
	StatusFinished Status = "finished"
	StatusDNS      Status = "dns"
	StatusDNF      Status = "dnf"
)

// Gender codes used on riders and classes.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderAny    = ""
)

// Result is one rider's outcome in one class of one event. Rows are produced by
// import and repair tooling; the engine only rewrites placement, points and class.
type Result struct {
	ID       int64
	EventID  int64
	RiderID  int64
	ClassID  int64
	ClubID   int64 // 0 when the rider rode without a club
	Position int   // 0 when unplaced
	Status   Status

	Points     float64
	Run1Points float64
	Run2Points float64

	// Recorded times; zero means no valid time.
	Time     time.Duration
	Run1Time time.Duration
	Run2Time time.Duration

	RiderBirthYear int // 0 when unknown
	RiderGender    string
}

// Finished reports whether the row has finished status.
func (r Result) Finished() bool {
	return strings.EqualFold(string(r.Status), string(StatusFinished))
}

// Scored reports whether the row participates in scoring.
func (r Result) Scored() bool {
	return r.Finished() && r.Position > 0
}

// HasClub reports whether the row is attributed to a club.
func (r Result) HasClub() bool { return r.ClubID > 0 }

// BestTime returns the faster valid run time, or zero when neither run is valid.
func (r Result) BestTime() time.Duration {
	switch {
	case r.Run1Time > 0 && r.Run2Time > 0:
		return min(r.Run1Time, r.Run2Time)
	case r.Run1Time > 0:
		return r.Run1Time
	default:
		return r.Run2Time
	}
}

// Validate rejects rows the engine cannot score.
func (r Result) Validate() error {
	for _, p := range []float64{r.Points, r.Run1Points, r.Run2Points} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return fmt.Errorf("result %d: points %v: %w", r.ID, p, ErrMalformedResult)
		}
	}
	if r.Position < 0 {
		return fmt.Errorf("result %d: position %d: %w", r.ID, r.Position, ErrMalformedResult)
	}
	if r.Time < 0 || r.Run1Time < 0 || r.Run2Time < 0 {
		return fmt.Errorf("result %d: negative time: %w", r.ID, ErrMalformedResult)
	}
	if r.RiderID <= 0 {
		return fmt.Errorf("result %d: missing rider: %w", r.ID, ErrMalformedResult)
	}
	return nil
}

// Class is a competition class restricted by gender and age.
type Class struct {
	ID     int64
	Name   string
	Gender string // GenderAny accepts every rider
	MinAge int    // 0 = no lower bound
	MaxAge int    // 0 = no upper bound
}

// Accepts reports whether a rider of the given gender and age fits the class.
func (c Class) Accepts(gender string, age int) bool {
	if c.Gender != GenderAny && !strings.EqualFold(c.Gender, gender) {
		return false
	}
	if c.MinAge > 0 && age < c.MinAge {
		return false
	}
	if c.MaxAge > 0 && age > c.MaxAge {
		return false
	}
	return true
}

// span is the width of the class's age range; open ranges count as wide.
func (c Class) span() int {
	lo, hi := c.MinAge, c.MaxAge
	if hi == 0 {
		hi = 200
	}
	return hi - lo
}

// Narrower orders classes by age span, then id.
func (c Class) Narrower(o Class) bool {
	if c.span() != o.span() {
		return c.span() < o.span()
	}
	if (c.Gender != GenderAny) != (o.Gender != GenderAny) {
		return c.Gender != GenderAny
	}
	return c.ID < o.ID
}
