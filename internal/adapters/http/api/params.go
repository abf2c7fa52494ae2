package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/peloton/internal/domain/model"
)

func pathID(r *http.Request, op string) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(op, fmt.Errorf("invalid id %q", raw))
	}
	return id, nil
}

func pathDiscipline(r *http.Request, op string) (model.Discipline, error) {
	d := r.PathValue("discipline")
	if d == "" {
		return "", badRequest(op, errors.New("missing discipline"))
	}
	return model.Discipline(d), nil
}

// queryTime parses an optional query parameter; a missing one yields the zero time.
func queryTime(r *http.Request, op, key, layout string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, badRequest(op, fmt.Errorf("invalid %s %q, want %s", key, raw, layout))
	}
	return t, nil
}
