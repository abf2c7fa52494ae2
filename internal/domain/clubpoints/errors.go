package clubpoints

import (
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// ErrUnknownSeries is returned when the series id does not exist.
var ErrUnknownSeries = fmt.Errorf("unknown series: %w", model.ErrInvalidInput)
