// Package model defines the core data types shared by the brandpulse job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the type of job carried by a queue message.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

const (
	// JobTypeUpdateStatistics regenerates answers and positioning analyses for a user's questions.
	JobTypeUpdateStatistics JobType = "UPDATE_STATISTICS"
	// JobTypeCleanup prunes stale dead letters and, when configured, superseded statistics.
	JobTypeCleanup JobType = "CLEANUP"
	// JobTypeAnalytics snapshots brand rollups and emits analytics gauges.
	JobTypeAnalytics JobType = "ANALYTICS"
)

// TriggerSource records what caused a job to be emitted.
type TriggerSource string

const (
	// TriggerSourceCron marks jobs emitted by the calendar schedule.
	TriggerSourceCron TriggerSource = "cron"
	// TriggerSourceManual marks jobs emitted by an explicit request.
	TriggerSourceManual TriggerSource = "manual"
)

// ErrInvalidJobMessage is returned when a queue body cannot be decoded into a JobMessage.
var ErrInvalidJobMessage = errors.New("invalid job message")

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToUpper(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is one of the known job types.
func (t JobType) Valid() bool {
	return t == JobTypeUpdateStatistics || t == JobTypeCleanup || t == JobTypeAnalytics
}

// Valid returns true if the TriggerSource is known.
func (s TriggerSource) Valid() bool {
	return s == TriggerSourceCron || s == TriggerSourceManual
}

// JobMessage is the wire shape stored in the queue body. Data stays raw until a
// handler decodes it.
type JobMessage struct {
	Type      JobType         `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewJobMessage builds a JobMessage with the given payload marshaled as Data.
func NewJobMessage(jobType JobType, data any, now time.Time) (JobMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return JobMessage{}, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	return JobMessage{Type: jobType, Data: raw, Timestamp: now.UTC()}, nil
}

// Encode returns the JSON wire representation of the message.
func (m JobMessage) Encode() ([]byte, error) {
	if m.Type == "" {
		return nil, errors.New("job message type is required")
	}
	data := m.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	return json.Marshal(struct {
		Type      JobType         `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp"`
	}{
		Type:      m.Type,
		Data:      data,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// DecodeJobMessage parses a queue body. The type is read verbatim and not
// validated, so unknown types reach the dispatcher.
func DecodeJobMessage(body []byte) (JobMessage, error) {
	var wire struct {
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return JobMessage{}, fmt.Errorf("%w: %w", ErrInvalidJobMessage, err)
	}
	if wire.Type == "" {
		return JobMessage{}, fmt.Errorf("%w: missing type", ErrInvalidJobMessage)
	}
	return JobMessage{Type: JobType(wire.Type), Data: wire.Data, Timestamp: wire.Timestamp}, nil
}

// DecodeData unmarshals the message data into dst. Empty data leaves dst untouched.
func (m JobMessage) DecodeData(dst any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Data, dst); err != nil {
		return fmt.Errorf("decode %s data: %w", m.Type, err)
	}
	return nil
}

// TriggerRequest describes one trigger invocation.
type TriggerRequest struct {
	Source TriggerSource
	// Params is an optional JSON object carried into the payload unchanged.
	Params json.RawMessage
}

// TriggerInfo is embedded in every trigger payload.
type TriggerInfo struct {
	TriggeredBy TriggerSource   `json:"triggeredBy"`
	TriggeredAt time.Time       `json:"triggeredAt"`
	Params      json.RawMessage `json:"params,omitempty"`
}

// UpdateStatisticsData is the payload of an UPDATE_STATISTICS message.
type UpdateStatisticsData struct {
	TriggerInfo
	UserID      int64   `json:"userId"`
	QuestionIDs []int64 `json:"questionIds"`
}

// CleanupData is the payload of a CLEANUP message.
type CleanupData struct {
	TriggerInfo
}

// AnalyticsData is the payload of an ANALYTICS message.
type AnalyticsData struct {
	TriggerInfo
}
