// Package httptransport assembles the HTTP surface: lifecycle, SOS, travel
// letters, projections and dispatcher operations, behind the shared
// middleware stack.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	dispatchhandler "disha/internal/dispatch/handler"
	lifecyclehandler "disha/internal/lifecycle/handler"
	"disha/internal/platform/metrics"
	"disha/internal/platform/middleware"
	projectionhandler "disha/internal/projection/handler"
	soshandler "disha/internal/sos/handler"
	travelhandler "disha/internal/travel/handler"
)

// Handlers are the domain surfaces the router mounts. Any nil handler is
// skipped, which is how single-purpose test processes slim down.
type Handlers struct {
	Lifecycle  *lifecyclehandler.Handler
	SOS        *soshandler.Handler
	Travel     *travelhandler.Handler
	Projection *projectionhandler.Handler
	Dispatch   *dispatchhandler.Handler
}

// NewRouter builds the chi router with the full middleware stack. The JWT
// key verifies actor tokens minted by the identity collaborator.
func NewRouter(h Handlers, jwtSigningKey []byte, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Device)
	r.Use(middleware.Actor(jwtSigningKey, logger))

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if h.Lifecycle != nil {
			h.Lifecycle.Register(r)
		}
		if h.SOS != nil {
			h.SOS.Register(r)
		}
		if h.Travel != nil {
			h.Travel.Register(r)
		}
		if h.Projection != nil {
			h.Projection.Register(r)
		}
		if h.Dispatch != nil {
			h.Dispatch.Register(r)
		}
	})
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
