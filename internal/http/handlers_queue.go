// Package httpx provides the operational HTTP surface of the brandpulse job system.
package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/service"
)

// QueueTriggers is the manual trigger surface of the scheduler.
type QueueTriggers interface {
	TriggerUpdateStatistics(ctx context.Context, req model.TriggerRequest) (service.FanOutResult, error)
	TriggerCleanup(ctx context.Context, req model.TriggerRequest) (string, error)
	TriggerAnalytics(ctx context.Context, req model.TriggerRequest) (string, error)
	Status() []model.ScheduledJobInfo
}

// QueueDepth counts the messages waiting in the active transport.
type QueueDepth interface {
	MessagesInQueue(ctx context.Context) (int64, error)
}

// QueueHandlers exposes manual job triggers and the schedule status.
type QueueHandlers struct {
	Triggers  QueueTriggers
	Transport string
	Depth     QueueDepth // Optional
	Logger    *slog.Logger
}

type fanOutResponse struct {
	Message string `json:"message"`
	service.FanOutResult
}

type enqueueResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// UpdateStatistics enqueues one UPDATE_STATISTICS message per active user.
func (h *QueueHandlers) UpdateStatistics(w http.ResponseWriter, r *http.Request) {
	req, ok := readTriggerRequest(w, r)
	if !ok {
		return
	}
	res, err := h.Triggers.TriggerUpdateStatistics(r.Context(), req)
	if err != nil {
		h.writeTriggerError(w, r, model.JobTypeUpdateStatistics, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, fanOutResponse{
		Message:      "Statistics update jobs enqueued",
		FanOutResult: res,
	})
}

// Cleanup enqueues a CLEANUP message.
func (h *QueueHandlers) Cleanup(w http.ResponseWriter, r *http.Request) {
	req, ok := readTriggerRequest(w, r)
	if !ok {
		return
	}
	id, err := h.Triggers.TriggerCleanup(r.Context(), req)
	if err != nil {
		h.writeTriggerError(w, r, model.JobTypeCleanup, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, enqueueResponse{Message: "Cleanup job enqueued", MessageID: id})
}

// Analytics enqueues an ANALYTICS message.
func (h *QueueHandlers) Analytics(w http.ResponseWriter, r *http.Request) {
	req, ok := readTriggerRequest(w, r)
	if !ok {
		return
	}
	id, err := h.Triggers.TriggerAnalytics(r.Context(), req)
	if err != nil {
		h.writeTriggerError(w, r, model.JobTypeAnalytics, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, enqueueResponse{Message: "Analytics job enqueued", MessageID: id})
}

// Status reports the transport, its waiting message count and the calendar triggers.
// A failing count is logged and left out rather than failing the request.
func (h *QueueHandlers) Status(w http.ResponseWriter, r *http.Request) {
	jobs := h.Triggers.Status()
	if jobs == nil {
		jobs = []model.ScheduledJobInfo{}
	}
	status := model.QueueStatus{Transport: h.Transport, ScheduledJobs: jobs}
	if h.Depth != nil {
		n, err := h.Depth.MessagesInQueue(r.Context())
		if err != nil {
			h.log().WarnContext(r.Context(), "queue depth unavailable", "transport", h.Transport, "error", err)
		} else {
			status.MessagesInQueue = &n
		}
	}
	WriteJSON(w, http.StatusOK, status)
}

func (h *QueueHandlers) log() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *QueueHandlers) writeTriggerError(w http.ResponseWriter, r *http.Request, jobType model.JobType, err error) {
	h.log().ErrorContext(r.Context(), "manual trigger failed", "job_type", jobType, "error", err)

	if model.IsDeliveryError(err) {
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "delivery_failed", Err: err})
		return
	}
	WriteAppError(w, err)
}
