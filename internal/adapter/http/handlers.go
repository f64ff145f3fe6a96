package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency for /health.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Handler struct {
	checks []Check
	now    func() time.Time
}

func NewHandler(checks ...Check) *Handler {
	return &Handler{checks: checks, now: time.Now}
}

func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	code, status := http.StatusOK, "ok"
	deps := make(map[string]string, len(h.checks))
	for _, ch := range h.checks {
		if err := ch.Probe(ctx); err != nil {
			deps[ch.Name] = err.Error()
			code, status = http.StatusServiceUnavailable, "degraded"
			continue
		}
		deps[ch.Name] = "ok"
	}
	body := map[string]any{
		"status": status,
		"time":   h.now().UTC().Format(time.RFC3339Nano),
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	return c.JSON(code, body)
}
