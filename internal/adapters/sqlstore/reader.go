package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/model"
)

const eventColumns = `id, name, event_date, discipline, event_level, point_scale_id, event_format`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.Event, error) {
	var (
		e              model.Event
		date, format   string
		discipline, lv string
	)
	if err := row.Scan(&e.ID, &e.Name, &date, &discipline, &lv, &e.PointScaleID, &format); err != nil {
		return model.Event{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return model.Event{}, err
	}
	e.Date = d
	e.Discipline = model.Discipline(discipline)
	e.Level = model.EventLevel(lv)
	e.Mode = model.ParseScoringMode(format)
	return e, nil
}

func (s *Store) events(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, s.backend.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEvent implements repository.Reader.
func (s *Store) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	defer s.observe("get_event")()
	row := s.db.QueryRowContext(ctx, s.backend.rebind(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id)
	e, err := scanEvent(row)
	if err != nil {
		return model.Event{}, notFound(err, "event", id)
	}
	return e, nil
}

// ListFinishedResults implements repository.Reader.
func (s *Store) ListFinishedResults(ctx context.Context, eventID int64) ([]model.Result, error) {
	defer s.observe("list_finished_results")()
	rows, err := s.db.QueryContext(ctx, s.backend.rebind(`
		SELECT id, event_id, rider_id, class_id, club_id, finish_position, status,
		       points, run1_points, run2_points, time_ms, run1_time_ms, run2_time_ms,
		       rider_birth_year, rider_gender
		FROM results
		WHERE event_id = ? AND LOWER(status) = ?
		ORDER BY id`), eventID, string(model.StatusFinished))
	if err != nil {
		return nil, fmt.Errorf("list results of event %d: %w", eventID, err)
	}
	defer rows.Close()

	var out []model.Result
	for rows.Next() {
		var (
			r         model.Result
			status    string
			t, t1, t2 int64
		)
		if err := rows.Scan(&r.ID, &r.EventID, &r.RiderID, &r.ClassID, &r.ClubID, &r.Position, &status,
			&r.Points, &r.Run1Points, &r.Run2Points, &t, &t1, &t2, &r.RiderBirthYear, &r.RiderGender); err != nil {
			return nil, err
		}
		r.Status = model.Status(status)
		r.Time = time.Duration(t) * time.Millisecond
		r.Run1Time = time.Duration(t1) * time.Millisecond
		r.Run2Time = time.Duration(t2) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListEventsInRange implements repository.Reader.
func (s *Store) ListEventsInRange(ctx context.Context, discipline model.Discipline, from, to time.Time) ([]model.Event, error) {
	defer s.observe("list_events_in_range")()
	out, err := s.events(ctx, `SELECT `+eventColumns+` FROM events
		WHERE discipline = ? AND event_date >= ? AND event_date <= ?
		ORDER BY event_date, id`, string(discipline), formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("list %s events: %w", discipline, err)
	}
	return out, nil
}

// CountFinishedResults implements repository.Reader.
func (s *Store) CountFinishedResults(ctx context.Context, discipline model.Discipline, from, to time.Time) (int, error) {
	defer s.observe("count_finished_results")()
	var n int
	err := s.db.QueryRowContext(ctx, s.backend.rebind(`
		SELECT COUNT(*) FROM results r
		JOIN events e ON e.id = r.event_id
		WHERE e.discipline = ? AND e.event_date >= ? AND e.event_date <= ? AND LOWER(r.status) = ?`),
		string(discipline), formatDate(from), formatDate(to), string(model.StatusFinished)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s results: %w", discipline, err)
	}
	return n, nil
}

// GetPointScale implements repository.Reader.
func (s *Store) GetPointScale(ctx context.Context, id int64) (model.PointScale, error) {
	defer s.observe("get_point_scale")()
	var (
		name, discipline string
		dual             int
	)
	err := s.db.QueryRowContext(ctx, s.backend.rebind(`SELECT name, discipline, dual_run FROM point_scales WHERE id = ?`), id).
		Scan(&name, &discipline, &dual)
	if err != nil {
		return model.PointScale{}, notFound(err, "point scale", id)
	}

	rows, err := s.db.QueryContext(ctx, s.backend.rebind(`
		SELECT place, points, run1_points, run2_points FROM point_scale_values
		WHERE scale_id = ? ORDER BY place`), id)
	if err != nil {
		return model.PointScale{}, fmt.Errorf("point scale %d values: %w", id, err)
	}
	defer rows.Close()
	values := make(map[int]model.ScaleValue)
	for rows.Next() {
		var (
			place int
			v     model.ScaleValue
		)
		if err := rows.Scan(&place, &v.Points, &v.Run1Points, &v.Run2Points); err != nil {
			return model.PointScale{}, err
		}
		values[place] = v
	}
	if err := rows.Err(); err != nil {
		return model.PointScale{}, err
	}
	return model.NewPointScale(id, name, model.Discipline(discipline), dual != 0, values)
}

// ListClasses implements repository.Reader.
func (s *Store) ListClasses(ctx context.Context) ([]model.Class, error) {
	defer s.observe("list_classes")()
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, gender, min_age, max_age FROM classes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()
	var out []model.Class
	for rows.Next() {
		var c model.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Gender, &c.MinAge, &c.MaxAge); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetSeries implements repository.Reader.
func (s *Store) GetSeries(ctx context.Context, id int64) (model.Series, error) {
	defer s.observe("get_series")()
	se := model.Series{ID: id}
	err := s.db.QueryRowContext(ctx, s.backend.rebind(`SELECT name, series_year FROM series WHERE id = ?`), id).
		Scan(&se.Name, &se.Year)
	if err != nil {
		return model.Series{}, notFound(err, "series", id)
	}
	return se, nil
}

// ListSeriesEvents implements repository.Reader.
func (s *Store) ListSeriesEvents(ctx context.Context, seriesID int64) ([]model.Event, error) {
	defer s.observe("list_series_events")()
	out, err := s.events(ctx, `SELECT e.id, e.name, e.event_date, e.discipline, e.event_level, e.point_scale_id, e.event_format
		FROM events e JOIN series_events se ON se.event_id = e.id
		WHERE se.series_id = ?
		ORDER BY e.event_date, e.id`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list events of series %d: %w", seriesID, err)
	}
	return out, nil
}

// ListRankingPoints implements repository.Reader.
func (s *Store) ListRankingPoints(ctx context.Context, eventID int64) ([]model.RankingPoint, error) {
	defer s.observe("list_ranking_points")()
	rows, err := s.db.QueryContext(ctx, s.backend.rebind(`
		SELECT rider_id, event_id, discipline, event_date, base_points, field_multiplier,
		       level_multiplier, weighted_points, participant_count, computed_at, generation
		FROM ranking_points WHERE event_id = ? ORDER BY rider_id`), eventID)
	if err != nil {
		return nil, fmt.Errorf("list ranking points of event %d: %w", eventID, err)
	}
	defer rows.Close()
	var out []model.RankingPoint
	for rows.Next() {
		var (
			p                          model.RankingPoint
			discipline, date, computed string
		)
		if err := rows.Scan(&p.RiderID, &p.EventID, &discipline, &date, &p.BasePoints, &p.FieldMultiplier,
			&p.LevelMultiplier, &p.WeightedPoints, &p.ParticipantCount, &computed, &p.Generation); err != nil {
			return nil, err
		}
		p.Discipline = model.Discipline(discipline)
		if p.EventDate, err = parseDate(date); err != nil {
			return nil, err
		}
		if p.ComputedAt, err = time.Parse(time.RFC3339Nano, computed); err != nil {
			return nil, fmt.Errorf("parse computed_at %q: %w", computed, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListSnapshot implements repository.Reader.
func (s *Store) ListSnapshot(ctx context.Context, discipline model.Discipline, snapshotDate time.Time) ([]model.RankingSnapshot, error) {
	defer s.observe("list_snapshot")()
	month := model.MonthStart(snapshotDate)
	rows, err := s.db.QueryContext(ctx, s.backend.rebind(`
		SELECT rider_id, total_ranking_points, points_last_12_months, points_months_13_24,
		       events_count, ranking_position, previous_position, position_change, generation
		FROM ranking_snapshots WHERE discipline = ? AND snapshot_date = ?
		ORDER BY ranking_position`), string(discipline), formatDate(month))
	if err != nil {
		return nil, fmt.Errorf("list %s snapshot: %w", discipline, err)
	}
	defer rows.Close()
	var out []model.RankingSnapshot
	for rows.Next() {
		var (
			r            = model.RankingSnapshot{Discipline: discipline, SnapshotDate: month}
			prev, change sql.NullInt64
		)
		if err := rows.Scan(&r.RiderID, &r.TotalRankingPoints, &r.PointsLast12Months, &r.PointsMonths13To24,
			&r.EventsCount, &r.RankingPosition, &prev, &change, &r.Generation); err != nil {
			return nil, err
		}
		r.PreviousPosition = intPtr(prev)
		r.PositionChange = intPtr(change)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSnapshotDate implements repository.Reader.
func (s *Store) LatestSnapshotDate(ctx context.Context, discipline model.Discipline) (time.Time, error) {
	defer s.observe("latest_snapshot_date")()
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, s.backend.rebind(`SELECT MAX(snapshot_date) FROM ranking_snapshots WHERE discipline = ?`),
		string(discipline)).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest %s snapshot: %w", discipline, err)
	}
	if !latest.Valid {
		return time.Time{}, fmt.Errorf("snapshot %s: %w", discipline, repository.ErrNotFound)
	}
	return parseDate(latest.String)
}

// ListClubStandings implements repository.Reader.
func (s *Store) ListClubStandings(ctx context.Context, seriesID int64) ([]model.ClubStanding, error) {
	defer s.observe("list_club_standings")()
	rows, err := s.db.QueryContext(ctx, s.backend.rebind(`
		SELECT club_id, total_points, total_participants, events_count, best_event_points, ranking, generation
		FROM club_standings WHERE series_id = ? ORDER BY ranking`), seriesID)
	if err != nil {
		return nil, fmt.Errorf("list standings of series %d: %w", seriesID, err)
	}
	defer rows.Close()
	var out []model.ClubStanding
	for rows.Next() {
		st := model.ClubStanding{SeriesID: seriesID}
		if err := rows.Scan(&st.ClubID, &st.TotalPoints, &st.TotalParticipants, &st.EventsCount,
			&st.BestEventPoints, &st.Ranking, &st.Generation); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListClubPointsDetails implements repository.Reader.
func (s *Store) ListClubPointsDetails(ctx context.Context, seriesID int64) ([]model.ClubPointsDetail, error) {
	defer s.observe("list_club_points_details")()
	rows, err := s.db.QueryContext(ctx, s.backend.rebind(`
		SELECT club_id, event_id, rider_id, class_id, original_points, percentage_applied, club_points, rider_rank_in_club
		FROM club_points_details WHERE series_id = ?
		ORDER BY event_id, club_id, class_id, rider_rank_in_club`), seriesID)
	if err != nil {
		return nil, fmt.Errorf("list club details of series %d: %w", seriesID, err)
	}
	defer rows.Close()
	var out []model.ClubPointsDetail
	for rows.Next() {
		d := model.ClubPointsDetail{SeriesID: seriesID}
		if err := rows.Scan(&d.ClubID, &d.EventID, &d.RiderID, &d.ClassID, &d.OriginalPoints,
			&d.PercentageApplied, &d.ClubPoints, &d.RiderRankInClub); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
