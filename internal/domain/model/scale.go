package model

import (
	"fmt"
	"sort"
)

// ScaleValue holds the points paid at one position.
type ScaleValue struct {
	Points     float64
	Run1Points float64
	Run2Points float64
}

// PointScale maps finishing positions to points for one discipline.
type PointScale struct {
	ID         int64
	Name       string
	Discipline Discipline
	DualRun    bool
	values     []ScaleValue // index 0 is position 1
}

// NewPointScale builds a scale from a position table. Positions must run 1..N.
func NewPointScale(id int64, name string, discipline Discipline, dualRun bool, values map[int]ScaleValue) (PointScale, error) {
	positions := make([]int, 0, len(values))
	for p := range values {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	for i, p := range positions {
		if p != i+1 {
			return PointScale{}, fmt.Errorf("scale %d: position %d: %w", id, p, ErrNonContiguousScale)
		}
	}
	s := PointScale{ID: id, Name: name, Discipline: discipline, DualRun: dualRun, values: make([]ScaleValue, len(positions))}
	for i, p := range positions {
		s.values[i] = values[p]
	}
	return s, nil
}

// MaxPosition is the last point-paying position.
func (s PointScale) MaxPosition() int { return len(s.values) }

// Value returns the row for position, and false beyond the table.
func (s PointScale) Value(position int) (ScaleValue, bool) {
	if position < 1 || position > len(s.values) {
		return ScaleValue{}, false
	}
	return s.values[position-1], true
}

// Values returns a copy of the table keyed by position.
func (s PointScale) Values() map[int]ScaleValue {
	out := make(map[int]ScaleValue, len(s.values))
	for i, v := range s.values {
		out[i+1] = v
	}
	return out
}
