package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/target/brandpulse/internal/domain/model"
	apperrors "github.com/target/brandpulse/internal/errors"
)

// BrandRollups computes brand-level statistics.
type BrandRollups interface {
	Aggregate(ctx context.Context, brandID int64) (*model.BrandRollup, error)
}

// QuestionRegenerator regenerates a question's answers.
type QuestionRegenerator interface {
	Regenerate(ctx context.Context, questionID int64) (*model.Question, error)
}

// BrandHandlers serves brand rollups.
type BrandHandlers struct {
	Rollups BrandRollups
}

// Statistics returns the rollup of one brand.
func (h *BrandHandlers) Statistics(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	rollup, err := h.Rollups.Aggregate(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rollup)
}

// QuestionHandlers serves question regeneration.
type QuestionHandlers struct {
	Regenerator QuestionRegenerator
}

// Regenerate asks both providers again and schedules the positioning analysis.
func (h *QuestionHandlers) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.Regenerator.Regenerate(r.Context(), id)
	if errors.Is(err, model.ErrQuestionNotFound) {
		WriteAppError(w, apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "question %d not found", id))
		return
	}
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, q)
}
