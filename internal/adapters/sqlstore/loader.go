package sqlstore

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/model"
)

// load runs fn in a transaction, like Update, for source rows.
func (s *Store) load(ctx context.Context, fn func(w *writer) error) error {
	return s.Update(ctx, func(w repository.Writer) error {
		return fn(w.(*writer))
	})
}

// PutEvent implements repository.Loader.
func (s *Store) PutEvent(ctx context.Context, e model.Event) error {
	return s.load(ctx, func(w *writer) error {
		if _, err := w.exec(ctx, `DELETE FROM events WHERE id = ?`, e.ID); err != nil {
			return err
		}
		_, err := w.exec(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (`+placeholders(7)+`)`,
			e.ID, e.Name, formatDate(e.Date), string(e.Discipline), string(e.Level), e.PointScaleID, e.Mode.String())
		if err != nil {
			return fmt.Errorf("insert event %d: %w", e.ID, err)
		}
		return nil
	})
}

// PutResults implements repository.Loader.
func (s *Store) PutResults(ctx context.Context, results ...model.Result) error {
	return s.load(ctx, func(w *writer) error {
		for _, r := range results {
			var n int
			if err := w.q.QueryRowContext(ctx, w.backend.rebind(`SELECT COUNT(*) FROM events WHERE id = ?`), r.EventID).Scan(&n); err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("result %d: event %d: %w", r.ID, r.EventID, repository.ErrNotFound)
			}
			if _, err := w.exec(ctx, `DELETE FROM results WHERE id = ?`, r.ID); err != nil {
				return err
			}
			_, err := w.exec(ctx, `INSERT INTO results (id, event_id, rider_id, class_id, club_id, finish_position, status,
				points, run1_points, run2_points, time_ms, run1_time_ms, run2_time_ms, rider_birth_year, rider_gender)
				VALUES (`+placeholders(15)+`)`,
				r.ID, r.EventID, r.RiderID, r.ClassID, r.ClubID, r.Position, string(r.Status),
				r.Points, r.Run1Points, r.Run2Points, r.Time.Milliseconds(), r.Run1Time.Milliseconds(),
				r.Run2Time.Milliseconds(), r.RiderBirthYear, r.RiderGender)
			if err != nil {
				return fmt.Errorf("insert result %d: %w", r.ID, err)
			}
		}
		return nil
	})
}

// PutPointScale implements repository.Loader.
func (s *Store) PutPointScale(ctx context.Context, ps model.PointScale) error {
	return s.load(ctx, func(w *writer) error {
		if _, err := w.exec(ctx, `DELETE FROM point_scale_values WHERE scale_id = ?`, ps.ID); err != nil {
			return err
		}
		if _, err := w.exec(ctx, `DELETE FROM point_scales WHERE id = ?`, ps.ID); err != nil {
			return err
		}
		dual := 0
		if ps.DualRun {
			dual = 1
		}
		if _, err := w.exec(ctx, `INSERT INTO point_scales (id, name, discipline, dual_run) VALUES (?, ?, ?, ?)`,
			ps.ID, ps.Name, string(ps.Discipline), dual); err != nil {
			return fmt.Errorf("insert point scale %d: %w", ps.ID, err)
		}
		values := ps.Values()
		for _, place := range slices.Sorted(maps.Keys(values)) {
			v := values[place]
			if _, err := w.exec(ctx, `INSERT INTO point_scale_values (scale_id, place, points, run1_points, run2_points)
				VALUES (?, ?, ?, ?, ?)`, ps.ID, place, v.Points, v.Run1Points, v.Run2Points); err != nil {
				return fmt.Errorf("insert point scale %d place %d: %w", ps.ID, place, err)
			}
		}
		return nil
	})
}

// PutClass implements repository.Loader.
func (s *Store) PutClass(ctx context.Context, c model.Class) error {
	return s.load(ctx, func(w *writer) error {
		if _, err := w.exec(ctx, `DELETE FROM classes WHERE id = ?`, c.ID); err != nil {
			return err
		}
		_, err := w.exec(ctx, `INSERT INTO classes (id, name, gender, min_age, max_age) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Gender, c.MinAge, c.MaxAge)
		return err
	})
}

// PutSeries implements repository.Loader.
func (s *Store) PutSeries(ctx context.Context, se model.Series, eventIDs ...int64) error {
	return s.load(ctx, func(w *writer) error {
		if _, err := w.exec(ctx, `DELETE FROM series_events WHERE series_id = ?`, se.ID); err != nil {
			return err
		}
		if _, err := w.exec(ctx, `DELETE FROM series WHERE id = ?`, se.ID); err != nil {
			return err
		}
		if _, err := w.exec(ctx, `INSERT INTO series (id, name, series_year) VALUES (?, ?, ?)`, se.ID, se.Name, se.Year); err != nil {
			return fmt.Errorf("insert series %d: %w", se.ID, err)
		}
		for _, id := range slices.Compact(slices.Sorted(slices.Values(eventIDs))) {
			if _, err := w.exec(ctx, `INSERT INTO series_events (series_id, event_id) VALUES (?, ?)`, se.ID, id); err != nil {
				return fmt.Errorf("insert series %d event %d: %w", se.ID, id, err)
			}
		}
		return nil
	})
}
