package service

import (
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// Sentinel errors returned by the service. They wrap the domain kinds so
// callers can map them with errors.Is.
var (
	// ErrUnknownScope is returned for ids that cannot name a scope, e.g. event 0.
	ErrUnknownScope = fmt.Errorf("unknown scope: %w", model.ErrInvalidInput)

	// ErrNoSnapshot is returned when a discipline has no stored snapshot yet.
	ErrNoSnapshot = fmt.Errorf("snapshot %w", model.ErrNotFound)
)
