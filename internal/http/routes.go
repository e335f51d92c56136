package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Triggers    QueueTriggers
	Rollups     BrandRollups
	Regenerator QuestionRegenerator
	// Transport names the active queue transport for the status endpoint.
	Transport string
	// QueueDepth adds messagesInQueue to the status endpoint (optional).
	QueueDepth QueueDepth
	// Metrics serves /metrics when the Prometheus backend is enabled (optional).
	Metrics http.Handler
	// Probes back /readyz; with none the endpoint always reports ready.
	Probes []Probe
	Logger *slog.Logger
}

// NewRouter creates the ops router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	health := &HealthHandlers{Probes: services.Probes}
	mux.HandleFunc("GET /healthz", health.Live)
	mux.HandleFunc("HEAD /healthz", health.Live)
	mux.HandleFunc("GET /readyz", health.Ready)
	mux.HandleFunc("HEAD /readyz", health.Ready)

	if services.Triggers != nil {
		registerQueueRoutes(mux, &QueueHandlers{
			Triggers:  services.Triggers,
			Transport: services.Transport,
			Depth:     services.QueueDepth,
			Logger:    services.Logger,
		})
	}
	if services.Rollups != nil {
		mux.HandleFunc("GET /api/brands/{id}/statistics", (&BrandHandlers{Rollups: services.Rollups}).Statistics)
	}
	if services.Regenerator != nil {
		mux.HandleFunc("POST /api/questions/{id}/regenerate",
			(&QuestionHandlers{Regenerator: services.Regenerator}).Regenerate)
	}
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}

	return mux
}

func registerQueueRoutes(mux *http.ServeMux, h *QueueHandlers) {
	mux.HandleFunc("POST /api/queue/update-statistics", h.UpdateStatistics)
	mux.HandleFunc("POST /api/queue/cleanup", h.Cleanup)
	mux.HandleFunc("POST /api/queue/analytics", h.Analytics)
	mux.HandleFunc("GET /api/queue/status", h.Status)
}
