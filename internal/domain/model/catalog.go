package model

import (
	"errors"
	"time"
)

// ErrQuestionNotFound is returned when a question id does not resolve to a record.
var ErrQuestionNotFound = errors.New("question not found")

// ErrBrandNotFound is returned when a brand id does not resolve to a record.
var ErrBrandNotFound = errors.New("brand not found")

// UnknownBrandName is used for analyses of questions that are not attached to a brand.
const UnknownBrandName = "unknown"

// Question is the subset of the CRUD service's question record this system reads and updates.
type Question struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	BrandID      *int64    `json:"brandId,omitempty"`
	Text         string    `json:"text"`
	Answer       string    `json:"answer"`
	GeminiAnswer string    `json:"geminiAnswer"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UpdateAnswersRequest carries regenerated answers for a question.
type UpdateAnswersRequest struct {
	QuestionID   int64
	Answer       string
	GeminiAnswer string
}
