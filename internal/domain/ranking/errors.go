package ranking

import (
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

var (
	// ErrMissingDiscipline is returned when a ranking is requested without a discipline.
	ErrMissingDiscipline = fmt.Errorf("discipline is required: %w", model.ErrInvalidInput)
	// ErrMissingAsOf is returned when the as-of date is the zero time.
	ErrMissingAsOf = fmt.Errorf("as-of date is required: %w", model.ErrInvalidInput)
)
