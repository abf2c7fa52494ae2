// Package seed generates a synthetic, reproducible season of events and
// results for demos and load checks.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/logger"
)

// ErrInvalidConfig is returned by Generate for unusable settings.
var ErrInvalidConfig = fmt.Errorf("seed: %w", model.ErrInvalidInput)

// Rider skill tiers. The base run time of a rider is drawn from the tier's band.
const (
	tierElite = iota
	tierHigh
	tierAverage
	tierLow
	tierCount
)

const (
	dnfRate       = 0.05
	dnsRate       = 0.02
	misclassRate  = 0.03
	turnoutRate   = 0.6
	noiseSpread   = 0.06
	unattachedPct = 0.15
)

var tierBands = [tierCount][2]float64{ //nolint:gochecknoglobals // fixed lookup table
	tierElite:   {180, 200},
	tierHigh:    {200, 230},
	tierAverage: {230, 280},
	tierLow:     {280, 380},
}

var levelCycle = []model.EventLevel{ //nolint:gochecknoglobals // fixed lookup table
	model.LevelLocal, model.LevelRegional, model.LevelNational, model.LevelRegional, model.LevelSM,
}

// Config controls the shape of a generated season.
type Config struct {
	Seed           uint64
	Riders         int
	Clubs          int
	Months         int
	EventsPerMonth int
	Disciplines    []model.Discipline
	End            time.Time // events fall in the Months months ending here
}

// DefaultConfig returns a small two-discipline season ending at end.
func DefaultConfig(end time.Time) Config {
	return Config{
		Seed:           1,
		Riders:         120,
		Clubs:          12,
		Months:         12,
		EventsPerMonth: 1,
		Disciplines:    []model.Discipline{"enduro", "downhill"},
		End:            end,
	}
}

func (c Config) validate() error {
	switch {
	case c.Riders <= 0:
		return fmt.Errorf("%w: riders must be positive", ErrInvalidConfig)
	case c.Clubs <= 0:
		return fmt.Errorf("%w: clubs must be positive", ErrInvalidConfig)
	case c.Months <= 0:
		return fmt.Errorf("%w: months must be positive", ErrInvalidConfig)
	case c.EventsPerMonth <= 0 || c.EventsPerMonth > 4:
		return fmt.Errorf("%w: events per month must be within 1..4", ErrInvalidConfig)
	case len(c.Disciplines) == 0:
		return fmt.Errorf("%w: at least one discipline is required", ErrInvalidConfig)
	case c.End.IsZero():
		return fmt.Errorf("%w: end date is required", ErrInvalidConfig)
	}
	return nil
}

// SeriesEvents ties a series to its events.
type SeriesEvents struct {
	Series   model.Series
	EventIDs []int64
}

// Season is a generated data set ready to be loaded.
type Season struct {
	Scales  []model.PointScale
	Classes []model.Class
	Events  []model.Event
	Results []model.Result
	Series  []SeriesEvents
}

type rider struct {
	id        int64
	gender    string
	birthYear int
	club      int64
	base      float64 // seconds
}

// Generate builds a season. The same Config always yields the same Season.
func Generate(cfg Config) (Season, error) {
	if err := cfg.validate(); err != nil {
		return Season{}, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible demo data

	var s Season
	scaleFor := make(map[model.Discipline][2]int64, len(cfg.Disciplines))
	for i, d := range cfg.Disciplines {
		single, dual := int64(2*i+1), int64(2*i+2)
		ps, err := singleRunScale(single, d)
		if err != nil {
			return Season{}, err
		}
		ds, err := dualRunScale(dual, d)
		if err != nil {
			return Season{}, err
		}
		s.Scales = append(s.Scales, ps, ds)
		scaleFor[d] = [2]int64{single, dual}
	}
	s.Classes = classes()

	riders := make([]rider, cfg.Riders)
	for i := range riders {
		riders[i] = newRider(rng, int64(i+1), cfg)
	}

	end := model.MonthStart(cfg.End)
	start := end.AddDate(0, -(cfg.Months - 1), 0)
	seriesByYear := make(map[string]int, 4)
	var eventID, resultID int64
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		for _, d := range cfg.Disciplines {
			for k := range cfg.EventsPerMonth {
				eventID++
				ev := model.Event{
					ID:         eventID,
					Name:       fmt.Sprintf("%s %s #%d", d, m.Format("Jan 2006"), k+1),
					Date:       m.AddDate(0, 0, 5+7*k),
					Discipline: d,
					Level:      levelCycle[int(eventID)%len(levelCycle)],
					Mode:       modeFor(d, eventID),
				}
				ev.PointScaleID = scaleFor[d][0]
				if ev.Mode == model.SumScoredDualRun {
					ev.PointScaleID = scaleFor[d][1]
				}
				s.Events = append(s.Events, ev)

				for _, r := range riders {
					if rng.Float64() > turnoutRate {
						continue
					}
					resultID++
					s.Results = append(s.Results, result(rng, resultID, ev, r, s.Classes))
				}

				key := fmt.Sprintf("%s/%d", d, ev.Date.Year())
				idx, ok := seriesByYear[key]
				if !ok {
					idx = len(s.Series)
					seriesByYear[key] = idx
					s.Series = append(s.Series, SeriesEvents{Series: model.Series{
						ID:   int64(idx + 1),
						Name: fmt.Sprintf("%s cup %d", d, ev.Date.Year()),
						Year: ev.Date.Year(),
					}})
				}
				s.Series[idx].EventIDs = append(s.Series[idx].EventIDs, ev.ID)
			}
		}
	}
	return s, nil
}

func newRider(rng *rand.Rand, id int64, cfg Config) rider {
	band := tierBands[rng.IntN(tierCount)]
	r := rider{
		id:        id,
		gender:    model.GenderMale,
		birthYear: cfg.End.Year() - 14 - rng.IntN(45),
		base:      band[0] + rng.Float64()*(band[1]-band[0]),
	}
	if rng.IntN(3) == 0 {
		r.gender = model.GenderFemale
	}
	if rng.Float64() >= unattachedPct {
		r.club = int64(1 + rng.IntN(cfg.Clubs))
	}
	return r
}

func modeFor(d model.Discipline, eventID int64) model.ScoringMode {
	if d != "downhill" {
		return model.SingleRun
	}
	if eventID%2 == 0 {
		return model.SumScoredDualRun
	}
	return model.StandardDualRun
}

func runTime(rng *rand.Rand, base float64) time.Duration {
	f := base * (1 + (rng.Float64()*2-1)*noiseSpread)
	return time.Duration(f * float64(time.Second)).Round(time.Millisecond)
}

func result(rng *rand.Rand, id int64, ev model.Event, r rider, cls []model.Class) model.Result {
	out := model.Result{
		ID:             id,
		EventID:        ev.ID,
		RiderID:        r.id,
		ClubID:         r.club,
		Status:         model.StatusFinished,
		RiderBirthYear: r.birthYear,
		RiderGender:    r.gender,
		ClassID:        classFor(cls, r.gender, ev.Date.Year()-r.birthYear),
	}
	if rng.Float64() < misclassRate {
		out.ClassID = cls[rng.IntN(len(cls))].ID
	}
	switch p := rng.Float64(); {
	case p < dnsRate:
		out.Status = model.StatusDNS
		return out
	case p < dnsRate+dnfRate:
		out.Status = model.StatusDNF
		return out
	}
	if ev.Mode == model.SingleRun {
		out.Time = runTime(rng, r.base)
		return out
	}
	out.Run1Time = runTime(rng, r.base)
	out.Run2Time = runTime(rng, r.base)
	out.Time = out.BestTime()
	return out
}

func classFor(cls []model.Class, gender string, age int) int64 {
	for _, c := range cls {
		if c.Accepts(gender, age) {
			return c.ID
		}
	}
	return cls[len(cls)-1].ID
}

// classes are ordered most specific first.
func classes() []model.Class {
	return []model.Class{
		{ID: 1, Name: "Junior men", Gender: model.GenderMale, MaxAge: 18},
		{ID: 2, Name: "Junior women", Gender: model.GenderFemale, MaxAge: 18},
		{ID: 3, Name: "Masters men", Gender: model.GenderMale, MinAge: 40},
		{ID: 4, Name: "Elite men", Gender: model.GenderMale, MinAge: 19},
		{ID: 5, Name: "Elite women", Gender: model.GenderFemale, MinAge: 19},
		{ID: 6, Name: "Open", Gender: model.GenderAny},
	}
}

func singleRunScale(id int64, d model.Discipline) (model.PointScale, error) {
	values := make(map[int]model.ScaleValue, 30)
	for p := 1; p <= 30; p++ {
		values[p] = model.ScaleValue{Points: singlePoints(p)}
	}
	return model.NewPointScale(id, fmt.Sprintf("%s standard", d), d, false, values)
}

func dualRunScale(id int64, d model.Discipline) (model.PointScale, error) {
	values := make(map[int]model.ScaleValue, 30)
	for p := 1; p <= 30; p++ {
		half := singlePoints(p) / 2
		values[p] = model.ScaleValue{Points: singlePoints(p), Run1Points: half, Run2Points: half}
	}
	return model.NewPointScale(id, fmt.Sprintf("%s dual run", d), d, true, values)
}

func singlePoints(p int) float64 {
	top := []float64{100, 80, 65, 55, 50}
	if p <= len(top) {
		return top[p-1]
	}
	return float64(max(1, 50-2*(p-5)))
}

// Load writes the season through l. Scales and classes go first so events
// never reference a missing row.
func Load(ctx context.Context, l repository.Loader, s Season) error {
	log := logger.Get()
	for _, ps := range s.Scales {
		if err := l.PutPointScale(ctx, ps); err != nil {
			return fmt.Errorf("put point scale %d: %w", ps.ID, err)
		}
	}
	for _, c := range s.Classes {
		if err := l.PutClass(ctx, c); err != nil {
			return fmt.Errorf("put class %d: %w", c.ID, err)
		}
	}
	byEvent := make(map[int64][]model.Result, len(s.Events))
	for _, r := range s.Results {
		byEvent[r.EventID] = append(byEvent[r.EventID], r)
	}
	var errs []error
	for _, e := range s.Events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.PutEvent(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("put event %d: %w", e.ID, err))
			continue
		}
		if err := l.PutResults(ctx, byEvent[e.ID]...); err != nil {
			errs = append(errs, fmt.Errorf("put results of event %d: %w", e.ID, err))
		}
	}
	for _, se := range s.Series {
		if err := l.PutSeries(ctx, se.Series, se.EventIDs...); err != nil {
			errs = append(errs, fmt.Errorf("put series %d: %w", se.Series.ID, err))
		}
	}
	log.Info(ctx, "season loaded",
		logger.Int("events", len(s.Events)),
		logger.Int("results", len(s.Results)),
		logger.Int("series", len(s.Series)),
		logger.Int("errors", len(errs)))
	return errors.Join(errs...)
}

// EventIDs lists the ids of every generated event.
func (s Season) EventIDs() []int64 {
	ids := make([]int64, len(s.Events))
	for i, e := range s.Events {
		ids[i] = e.ID
	}
	return ids
}
