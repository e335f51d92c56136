package model

import (
	"errors"
	"fmt"
	"time"
)

// MessageTypeAttribute is the transport attribute carrying the job type of a message.
const MessageTypeAttribute = "messageType"

// QueueMessage is a message handed out by a queue transport.
type QueueMessage struct {
	ID            string
	ReceiptHandle string
	Body          []byte
	// ReceiveCount is how many times the transport has delivered this message, including this delivery.
	ReceiveCount int
	Attributes   map[string]string
}

// SendRequest is the input to QueueTransport.Send.
type SendRequest struct {
	Body       []byte
	Attributes map[string]string
}

// ReceiveRequest bounds a single receive call.
type ReceiveRequest struct {
	MaxBatch int
	Wait     time.Duration
}

// DeliveryError is returned by the producer when the transport could not accept a message.
type DeliveryError struct {
	JobType JobType
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s message: %v", e.JobType, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsDeliveryError reports whether err is or wraps a DeliveryError.
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// DeadLetter is a message that exceeded its delivery budget.
type DeadLetter struct {
	ID             int64     `json:"id"`
	MessageID      string    `json:"messageId"`
	Body           []byte    `json:"body"`
	ReceiveCount   int       `json:"receiveCount"`
	Reason         string    `json:"reason"`
	DeadLetteredAt time.Time `json:"deadLetteredAt"`
}

// ScheduledJobInfo describes one calendar trigger for status reporting.
type ScheduledJobInfo struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	JobType  JobType    `json:"jobType"`
	NextRun  time.Time  `json:"nextRun"`
	LastRun  *time.Time `json:"lastRun,omitempty"`
}

// QueueStatus is the response of the queue status operation.
type QueueStatus struct {
	Transport string `json:"transport"`
	// MessagesInQueue is omitted when the transport cannot report it.
	MessagesInQueue *int64             `json:"messagesInQueue,omitempty"`
	ScheduledJobs   []ScheduledJobInfo `json:"scheduledJobs"`
}
