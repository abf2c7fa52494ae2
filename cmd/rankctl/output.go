package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/okian/peloton/internal/domain/types"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

type kv [2]string

func row(key string, val any) kv { return kv{key, fmt.Sprint(val)} }

func points(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func optInt(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func render(w io.Writer, headers []string, data [][]string, align tw.Align) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = align
	})
	if err := table.Bulk(data); err != nil {
		return fmt.Errorf("error adding table rows: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("error rendering table: %w", err)
	}
	return nil
}

// printReport writes the common run report followed by extra rows as a key/value table.
func printReport(w io.Writer, r types.Report, extra ...kv) error {
	data := [][]string{
		{"operation", r.Operation},
		{"scope", r.Scope},
		{"status", string(r.Status)},
		{"run", r.RunID},
		{"rows written", strconv.Itoa(r.RowsWritten)},
		{"duration", r.Duration.String()},
	}
	for _, e := range extra {
		data = append(data, e[:])
	}
	for _, n := range r.Notes {
		data = append(data, []string{"note", n})
	}
	for _, e := range r.Errors {
		data = append(data, []string{"error " + e.Item, e.Error})
	}
	return render(w, []string{"Field", "Value"}, data, tw.AlignLeft)
}

func printEvent(w io.Writer, s types.EventSummary) error {
	return printReport(w, s.Report,
		row("participants", s.Participants),
		row("positions updated", s.PositionsUpdated),
		row("positions changed", s.PositionsChanged),
		row("classes fixed", s.ClassesFixed),
		row("ranking points", s.RankingPoints),
	)
}

func printBackfill(w io.Writer, s types.BackfillSummary) error {
	return printReport(w, s.Report,
		row("months requested", s.MonthsRequested),
		row("months processed", s.MonthsProcessed),
		row("months skipped", s.MonthsSkipped),
	)
}

func printClubPoints(w io.Writer, s types.ClubPointsSummary) error {
	return printReport(w, s.Report,
		row("events processed", s.EventsProcessed),
		row("clubs", s.TotalClubs),
		row("total points", points(s.TotalPoints)),
	)
}

func printRanking(w io.Writer, v types.RankingView, top int) error {
	title := v.Discipline + " " + v.Date.Format(monthLayout)
	if v.Live {
		title = v.Discipline + " live " + v.Date.Format(dayLayout)
	}
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	entries := v.Entries
	if top > 0 && top < len(entries) {
		entries = entries[:top]
	}
	data := make([][]string, 0, len(entries))
	for _, e := range entries {
		data = append(data, []string{
			strconv.Itoa(e.Rank),
			strconv.FormatInt(e.RiderID, 10),
			points(e.TotalPoints),
			points(e.Points12),
			points(e.Points13To24),
			strconv.Itoa(e.EventsCount),
			optInt(e.PreviousPosition),
			optInt(e.PositionChange),
		})
	}
	return render(w, []string{"Rank", "Rider", "Points", "0-12m", "13-24m", "Events", "Prev", "Change"}, data, tw.AlignRight)
}

func printStandings(w io.Writer, rows []types.StandingEntry) error {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			strconv.Itoa(r.Rank),
			strconv.FormatInt(r.ClubID, 10),
			points(r.TotalPoints),
			strconv.Itoa(r.TotalParticipants),
			strconv.Itoa(r.EventsCount),
			points(r.BestEventPoints),
		})
	}
	return render(w, []string{"Rank", "Club", "Points", "Riders", "Events", "Best event"}, data, tw.AlignRight)
}
