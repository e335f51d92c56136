// Package core defines the ports between the brandpulse services and their adapters.
package core

import (
	"context"

	"github.com/target/brandpulse/internal/domain/model"
)

// JobType is re-exported so HTTP handlers do not depend on the model package directly.
type JobType = model.JobType

// JobHandler processes one delivered job message. A returned error leaves the message for redelivery.
type JobHandler func(ctx context.Context, msg model.JobMessage) error
