package snapshot

import (
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

var (
	// ErrInvalidMonths is returned when a backfill month count is outside 1..lookback.
	ErrInvalidMonths = fmt.Errorf("month count out of range: %w", model.ErrInvalidInput)
	// ErrMissingDiscipline is returned when a backfill names no discipline.
	ErrMissingDiscipline = fmt.Errorf("discipline is required: %w", model.ErrInvalidInput)
)
