package pointscale

import (
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// Sentinel error kinds for this package.
var (
	// ErrInvalidPosition is returned for positions below 1.
	ErrInvalidPosition = fmt.Errorf("invalid position: %w", model.ErrInvalidInput)

	// ErrScaleNotFound is what a Source may return for an unknown scale id.
	// Any error matching model.ErrNotFound is treated the same way.
	ErrScaleNotFound = fmt.Errorf("point scale %w", model.ErrNotFound)
)
