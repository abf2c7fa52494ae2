// Package eventpoints derives per-class placements and event points from the
// raw timing data of one event.
package eventpoints

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/pointscale"
)

// Outcome is the result of scoring one event.
type Outcome struct {
	EventID      int64
	Updates      []model.ResultUpdate
	Participants int             // distinct finishers
	ClassesFixed int             // rows relocated to the class their rider belongs in
	Relocated    map[int64]int64 // result id -> corrected class id
	Changed      int             // rows whose class, position or points differ from storage
	ScaleMissing bool            // no point scale; positions are set, points are 0
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithClassCorrection toggles relocation of rows raced in the wrong class.
func WithClassCorrection(enabled bool) Option {
	return func(c *Calculator) { c.fixClasses = enabled }
}

// Calculator scores events. It holds no per-event state and is safe for concurrent use.
type Calculator struct {
	fixClasses bool
}

// NewCalculator creates a calculator with class correction enabled.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{fixClasses: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate scores the finished results of event. scale may be nil when the
// event has no point scale assigned. classes is the class catalogue used for
// class correction.
func (c *Calculator) Calculate(event model.Event, scale *model.PointScale, results []model.Result, classes []model.Class) (Outcome, error) {
	out := Outcome{EventID: event.ID, ScaleMissing: scale == nil}

	finished := make([]model.Result, 0, len(results))
	for _, r := range results {
		if !r.Finished() {
			continue
		}
		if err := r.Validate(); err != nil {
			return Outcome{}, fmt.Errorf("event %d: %w", event.ID, err)
		}
		finished = append(finished, r)
	}
	if len(finished) == 0 {
		return out, nil
	}

	out.Participants = Participants(finished)

	if c.fixClasses && len(classes) > 0 {
		out.Relocated = correctClasses(event, finished, classes)
		out.ClassesFixed = len(out.Relocated)
	}

	byClass := make(map[int64][]model.Result)
	for _, r := range finished {
		byClass[r.ClassID] = append(byClass[r.ClassID], r)
	}
	classIDs := make([]int64, 0, len(byClass))
	for id := range byClass {
		classIDs = append(classIDs, id)
	}
	slices.Sort(classIDs)

	for _, classID := range classIDs {
		out.Updates = append(out.Updates, scoreClass(event.Mode, scale, byClass[classID])...)
	}

	stored := make(map[int64]model.Result, len(results))
	for _, r := range results {
		stored[r.ID] = r
	}
	for _, u := range out.Updates {
		s := stored[u.ResultID]
		if s.ClassID != u.ClassID || s.Position != u.Position || s.Points != u.Points ||
			s.Run1Points != u.Run1Points || s.Run2Points != u.Run2Points {
			out.Changed++
		}
	}
	return out, nil
}

// Participants counts the distinct riders with a finished row. The count is
// always taken from the rows themselves, never from a stored field.
func Participants(results []model.Result) int {
	riders := make(map[int64]struct{}, len(results))
	for _, r := range results {
		if r.Finished() {
			riders[r.RiderID] = struct{}{}
		}
	}
	return len(riders)
}

// correctClasses moves rows whose rider does not fit the recorded class into the
// narrowest accepting class raced at the event. It edits rows in place and
// returns the moves. A move that would give the rider two rows in one class is skipped.
func correctClasses(event model.Event, rows []model.Result, catalogue []model.Class) map[int64]int64 {
	known := make(map[int64]model.Class, len(catalogue))
	for _, cl := range catalogue {
		known[cl.ID] = cl
	}
	var raced []model.Class
	seen := make(map[int64]bool)
	taken := make(map[[2]int64]bool, len(rows))
	for _, r := range rows {
		taken[[2]int64{r.RiderID, r.ClassID}] = true
		if cl, ok := known[r.ClassID]; ok && !seen[cl.ID] {
			seen[cl.ID] = true
			raced = append(raced, cl)
		}
	}
	slices.SortFunc(raced, func(a, b model.Class) int {
		if a.Narrower(b) {
			return -1
		}
		if b.Narrower(a) {
			return 1
		}
		return 0
	})

	moves := make(map[int64]int64)
	year := event.Date.Year()
	for i := range rows {
		r := &rows[i]
		if r.RiderBirthYear <= 0 || r.RiderGender == "" {
			continue
		}
		age := year - r.RiderBirthYear
		if cl, ok := known[r.ClassID]; ok && cl.Accepts(r.RiderGender, age) {
			continue
		}
		for _, cl := range raced {
			if cl.ID == r.ClassID || !cl.Accepts(r.RiderGender, age) {
				continue
			}
			if taken[[2]int64{r.RiderID, cl.ID}] {
				break
			}
			delete(taken, [2]int64{r.RiderID, r.ClassID})
			taken[[2]int64{r.RiderID, cl.ID}] = true
			moves[r.ID] = cl.ID
			r.ClassID = cl.ID
			break
		}
	}
	return moves
}

// scoreClass places and scores the rows of one class.
func scoreClass(mode model.ScoringMode, scale *model.PointScale, rows []model.Result) []model.ResultUpdate {
	resolve := func(position int, run pointscale.Run) float64 {
		if scale == nil || position <= 0 {
			return 0
		}
		return pointscale.Points(*scale, position, run)
	}

	var final map[int64]int
	switch mode {
	case model.StandardDualRun, model.SumScoredDualRun:
		final = place(rows, model.Result.BestTime, true)
	default:
		final = place(rows, func(r model.Result) time.Duration { return r.Time }, true)
	}

	var run1, run2 map[int64]int
	if mode == model.SumScoredDualRun {
		run1 = place(rows, func(r model.Result) time.Duration { return r.Run1Time }, false)
		run2 = place(rows, func(r model.Result) time.Duration { return r.Run2Time }, false)
	}

	updates := make([]model.ResultUpdate, 0, len(rows))
	for _, r := range rows {
		u := model.ResultUpdate{ResultID: r.ID, ClassID: r.ClassID, Position: final[r.ID]}
		if mode == model.SumScoredDualRun {
			u.Run1Points = resolve(run1[r.ID], pointscale.Run1)
			u.Run2Points = resolve(run2[r.ID], pointscale.Run2)
			u.Points = u.Run1Points + u.Run2Points
		} else {
			u.Points = resolve(u.Position, pointscale.RunAny)
		}
		updates = append(updates, u)
	}
	slices.SortFunc(updates, func(a, b model.ResultUpdate) int {
		// Unplaced rows list last.
		if (a.Position == 0) != (b.Position == 0) {
			if a.Position == 0 {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ResultID, b.ResultID)
	})
	return updates
}

// place assigns standard competition ranks ("1224") by ascending key. Rows
// without a key get position 0, unless fallback is set, in which case rows with
// an imported position are ranked after the timed field in imported order.
func place(rows []model.Result, key func(model.Result) time.Duration, fallback bool) map[int64]int {
	pos := make(map[int64]int, len(rows))

	var timed, untimed []model.Result
	for _, r := range rows {
		switch {
		case key(r) > 0:
			timed = append(timed, r)
		case fallback && r.Position > 0:
			untimed = append(untimed, r)
		}
	}

	slices.SortFunc(timed, func(a, b model.Result) int {
		if c := cmp.Compare(key(a), key(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.RiderID, b.RiderID)
	})
	for i, r := range timed {
		if i > 0 && key(r) == key(timed[i-1]) {
			pos[r.ID] = pos[timed[i-1].ID]
			continue
		}
		pos[r.ID] = i + 1
	}

	slices.SortFunc(untimed, func(a, b model.Result) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.RiderID, b.RiderID)
	})
	base := len(timed)
	for i, r := range untimed {
		if i > 0 && r.Position == untimed[i-1].Position {
			pos[r.ID] = pos[untimed[i-1].ID]
			continue
		}
		pos[r.ID] = base + i + 1
	}
	return pos
}
