// Package metrics holds the metric helpers shared by the job pipeline.
package metrics

import (
	"time"

	obserrors "github.com/target/brandpulse/internal/observability/errors"
	"github.com/target/brandpulse/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Message transitions reported through EmitJobLifecycle.
const (
	TransitionEnqueue    = "enqueue"
	TransitionDispatch   = "dispatch"
	TransitionAck        = "ack"
	TransitionDeadLetter = "dead_letter"
)

// JobMetric captures details about a job message lifecycle event for metric emission.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits standardised job message lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := ResultTags(in.Result, in.Err)
	tags["job_type"] = in.JobType
	tags["transition"] = in.Transition

	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// ProviderCall describes one outbound language-model request.
type ProviderCall struct {
	Provider  string
	Operation string
	Duration  time.Duration
	Err       error
}

// EmitProviderCall records the outcome and latency of a provider request.
func EmitProviderCall(sink statsd.Sink, in ProviderCall) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if in.Err != nil {
		result = ResultError
	}
	tags := ResultTags(result, in.Err)
	tags["provider"] = in.Provider
	tags["operation"] = in.Operation

	sink.Count("provider.call", 1, tags)
	if in.Duration > 0 {
		sink.Timing("provider.call_duration", in.Duration, CloneTags(tags))
	}
}

// ResultTags returns a tag map with the result and, for errors, the classified error type.
func ResultTags(result string, err error) map[string]string {
	tags := map[string]string{"result": result}
	if err != nil && result == ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	return tags
}

// CountResult returns success, noop when n is zero, or error when err is set.
func CountResult(n int64, err error) string {
	switch {
	case err != nil:
		return ResultError
	case n == 0:
		return ResultNoop
	default:
		return ResultSuccess
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
