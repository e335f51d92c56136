package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const defaultProbeTimeout = 2 * time.Second

// Probe checks one backing dependency for the readiness endpoint.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandlers serves liveness and readiness.
type HealthHandlers struct {
	Probes  []Probe
	Timeout time.Duration
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live reports that the process is serving requests.
func (h *HealthHandlers) Live(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, r, http.StatusOK, readinessResponse{Status: "ok"})
}

// Ready runs every probe concurrently and answers 503 if any fails.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp := readinessResponse{Status: "ok", Checks: make(map[string]string, len(h.Probes))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range h.Probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := "ok"
			if err := p.Check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			resp.Checks[p.Name] = result
			if result != "ok" {
				resp.Status = "unavailable"
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeHealth(w, r, status, resp)
}

func writeHealth(w http.ResponseWriter, r *http.Request, status int, body readinessResponse) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, body)
}
