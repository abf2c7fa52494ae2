package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/model"
)

// writer issues delete-then-insert statements on one transaction.
type writer struct {
	q       queryer
	backend Backend
}

func (w *writer) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.backend.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (w *writer) ReplaceEventResults(ctx context.Context, eventID int64, updates []model.ResultUpdate) error {
	for _, u := range updates {
		n, err := w.exec(ctx, `
			UPDATE results
			SET class_id = CASE WHEN ? <> 0 THEN ? ELSE class_id END,
			    finish_position = ?, points = ?, run1_points = ?, run2_points = ?
			WHERE id = ? AND event_id = ?`,
			u.ClassID, u.ClassID, u.Position, u.Points, u.Run1Points, u.Run2Points, u.ResultID, eventID)
		if err != nil {
			return fmt.Errorf("update result %d: %w", u.ResultID, err)
		}
		if n == 0 {
			// MySQL reports zero affected rows for unchanged values; confirm the row exists.
			var found int
			err := w.q.QueryRowContext(ctx, w.backend.rebind(`SELECT COUNT(*) FROM results WHERE id = ? AND event_id = ?`),
				u.ResultID, eventID).Scan(&found)
			if err != nil {
				return fmt.Errorf("check result %d: %w", u.ResultID, err)
			}
			if found == 0 {
				return fmt.Errorf("event %d result %d: %w", eventID, u.ResultID, repository.ErrForeignResult)
			}
		}
	}
	return nil
}

func (w *writer) ReplaceRankingPoints(ctx context.Context, eventID int64, points []model.RankingPoint) error {
	if _, err := w.exec(ctx, `DELETE FROM ranking_points WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("clear ranking points of event %d: %w", eventID, err)
	}
	query := `INSERT INTO ranking_points (event_id, rider_id, discipline, event_date, base_points, field_multiplier,
		level_multiplier, weighted_points, participant_count, computed_at, generation) VALUES (` + placeholders(11) + `)`
	for _, p := range points {
		_, err := w.exec(ctx, query, eventID, p.RiderID, string(p.Discipline), formatDate(p.EventDate), p.BasePoints,
			p.FieldMultiplier, p.LevelMultiplier, p.WeightedPoints, p.ParticipantCount,
			p.ComputedAt.UTC().Format(time.RFC3339Nano), p.Generation)
		if err != nil {
			return fmt.Errorf("insert ranking point %d/%d: %w", eventID, p.RiderID, err)
		}
	}
	return nil
}

func (w *writer) ReplaceSnapshot(ctx context.Context, discipline model.Discipline, snapshotDate time.Time, rows []model.RankingSnapshot) error {
	month := formatDate(model.MonthStart(snapshotDate))
	if _, err := w.exec(ctx, `DELETE FROM ranking_snapshots WHERE discipline = ? AND snapshot_date = ?`, string(discipline), month); err != nil {
		return fmt.Errorf("clear %s snapshot %s: %w", discipline, month, err)
	}
	query := `INSERT INTO ranking_snapshots (discipline, snapshot_date, rider_id, total_ranking_points,
		points_last_12_months, points_months_13_24, events_count, ranking_position, previous_position,
		position_change, generation) VALUES (` + placeholders(11) + `)`
	for _, r := range rows {
		_, err := w.exec(ctx, query, string(discipline), month, r.RiderID, r.TotalRankingPoints,
			r.PointsLast12Months, r.PointsMonths13To24, r.EventsCount, r.RankingPosition,
			nullInt(r.PreviousPosition), nullInt(r.PositionChange), r.Generation)
		if err != nil {
			return fmt.Errorf("insert %s snapshot row %d: %w", discipline, r.RiderID, err)
		}
	}
	return nil
}

func (w *writer) ReplaceClubStandings(ctx context.Context, seriesID int64, details []model.ClubPointsDetail, standings []model.ClubStanding) error {
	if _, err := w.exec(ctx, `DELETE FROM club_points_details WHERE series_id = ?`, seriesID); err != nil {
		return fmt.Errorf("clear club details of series %d: %w", seriesID, err)
	}
	if _, err := w.exec(ctx, `DELETE FROM club_standings WHERE series_id = ?`, seriesID); err != nil {
		return fmt.Errorf("clear club standings of series %d: %w", seriesID, err)
	}

	detail := `INSERT INTO club_points_details (series_id, event_id, class_id, rider_id, club_id, original_points,
		percentage_applied, club_points, rider_rank_in_club) VALUES (` + placeholders(9) + `)`
	for _, d := range details {
		_, err := w.exec(ctx, detail, seriesID, d.EventID, d.ClassID, d.RiderID, d.ClubID, d.OriginalPoints,
			d.PercentageApplied, d.ClubPoints, d.RiderRankInClub)
		if err != nil {
			return fmt.Errorf("insert club detail %d/%d: %w", d.EventID, d.RiderID, err)
		}
	}

	standing := `INSERT INTO club_standings (series_id, club_id, total_points, total_participants, events_count,
		best_event_points, ranking, generation) VALUES (` + placeholders(8) + `)`
	for _, st := range standings {
		_, err := w.exec(ctx, standing, seriesID, st.ClubID, st.TotalPoints, st.TotalParticipants, st.EventsCount,
			st.BestEventPoints, st.Ranking, st.Generation)
		if err != nil {
			return fmt.Errorf("insert club standing %d: %w", st.ClubID, err)
		}
	}
	return nil
}
