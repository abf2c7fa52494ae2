package repository

import (
	"errors"
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound = fmt.Errorf("repository: %w", model.ErrNotFound)
	ErrClosed   = errors.New("repository: store closed")
	// ErrForeignResult is returned when an update names a result that does not
	// belong to the event being replaced.
	ErrForeignResult = fmt.Errorf("repository: result outside event: %w", model.ErrInvalidInput)
)
