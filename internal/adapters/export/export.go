// Package export writes ranking snapshots and club standings to Parquet files
// using github.com/parquet-go/parquet-go.
package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/okian/peloton/internal/domain/model"
)

// SnapshotRow is one rider's line of a monthly ranking snapshot.
type SnapshotRow struct {
	Discipline         string    `parquet:"discipline,snappy,dict"`
	SnapshotDate       time.Time `parquet:"snapshot_date,snappy"`
	RankingPosition    int32     `parquet:"ranking_position,snappy"`
	RiderID            int64     `parquet:"rider_id,snappy"`
	TotalRankingPoints float64   `parquet:"total_ranking_points,snappy"`
	PointsLast12Months float64   `parquet:"points_last_12_months,snappy"`
	PointsMonths13To24 float64   `parquet:"points_months_13_24,snappy"`
	EventsCount        int32     `parquet:"events_count,snappy"`

	// Nil for riders absent from every earlier snapshot.
	PreviousPosition *int32 `parquet:"previous_position,optional,snappy"`
	PositionChange   *int32 `parquet:"position_change,optional,snappy"`

	Generation string `parquet:"generation,snappy,dict"`
}

// StandingRow is one club's line of a series standing.
type StandingRow struct {
	SeriesID          int64   `parquet:"series_id,snappy"`
	Ranking           int32   `parquet:"ranking,snappy"`
	ClubID            int64   `parquet:"club_id,snappy"`
	TotalPoints       float64 `parquet:"total_points,snappy"`
	TotalParticipants int32   `parquet:"total_participants,snappy"`
	EventsCount       int32   `parquet:"events_count,snappy"`
	BestEventPoints   float64 `parquet:"best_event_points,snappy"`
	Generation        string  `parquet:"generation,snappy,dict"`
}

func int32Ptr(p *int) *int32 {
	if p == nil {
		return nil
	}
	v := int32(*p) //nolint:gosec // positions fit in int32
	return &v
}

// SnapshotRows converts stored snapshot rows.
func SnapshotRows(rows []model.RankingSnapshot) []SnapshotRow {
	out := make([]SnapshotRow, len(rows))
	for i, r := range rows {
		out[i] = SnapshotRow{
			Discipline:         string(r.Discipline),
			SnapshotDate:       r.SnapshotDate,
			RankingPosition:    int32(r.RankingPosition), //nolint:gosec // positions fit in int32
			RiderID:            r.RiderID,
			TotalRankingPoints: r.TotalRankingPoints,
			PointsLast12Months: r.PointsLast12Months,
			PointsMonths13To24: r.PointsMonths13To24,
			EventsCount:        int32(r.EventsCount), //nolint:gosec // counts fit in int32
			PreviousPosition:   int32Ptr(r.PreviousPosition),
			PositionChange:     int32Ptr(r.PositionChange),
			Generation:         r.Generation,
		}
	}
	return out
}

// StandingRows converts stored club standings.
func StandingRows(rows []model.ClubStanding) []StandingRow {
	out := make([]StandingRow, len(rows))
	for i, r := range rows {
		out[i] = StandingRow{
			SeriesID:          r.SeriesID,
			Ranking:           int32(r.Ranking), //nolint:gosec // ranks fit in int32
			ClubID:            r.ClubID,
			TotalPoints:       r.TotalPoints,
			TotalParticipants: int32(r.TotalParticipants), //nolint:gosec // counts fit in int32
			EventsCount:       int32(r.EventsCount),       //nolint:gosec // counts fit in int32
			BestEventPoints:   r.BestEventPoints,
			Generation:        r.Generation,
		}
	}
	return out
}

// Write encodes rows as one Parquet file onto w.
func Write[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// WriteFile writes rows to a new Parquet file at path.
func WriteFile[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Read decodes every row of a Parquet file written by Write.
func Read[T any](r io.ReaderAt, size int64) ([]T, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	reader := parquet.NewGenericReader[T](file)
	defer func() { _ = reader.Close() }()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return rows[:n], nil
}
