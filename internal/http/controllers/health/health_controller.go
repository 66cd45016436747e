// Package health contiene el controller para health checks.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/accountlink/internal/http/helpers"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

// Pinger es cualquier dependencia con chequeo de conectividad (cache, db).
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	components map[string]Pinger
	version    string
}

func NewHealthController(version string, components map[string]Pinger) *HealthController {
	return &HealthController{components: components, version: version}
}

type response struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// Healthz maneja GET /healthz. Cualquier componente caído => 503.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := response{Status: "ok", Version: c.version, Components: map[string]string{}}
	for name, p := range c.components {
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("health component down", logger.Component(name), logger.Err(err))
			resp.Components[name] = "down"
			resp.Status = "unavailable"
			continue
		}
		resp.Components[name] = "up"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, status, resp)
}
