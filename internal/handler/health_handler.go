package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// StoreChecker reports whether the record store is reachable.
type StoreChecker interface {
	Kind() string
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store StoreChecker
}

func NewHealthHandler(store StoreChecker) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Check(c echo.Context) error {
	status, code := "ok", http.StatusOK
	body := map[string]interface{}{
		"store":     h.store.Kind(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if err := h.store.Ping(c.Request().Context()); err != nil {
		status, code = "unavailable", http.StatusServiceUnavailable
		body["error"] = err.Error()
	}
	body["status"] = status

	return c.JSON(code, body)
}
