package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/brandpulse/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	require.NoError(t, err)

	event := client.buildEvent(notify.DeadLetterPayload{
		MessageID:    "msg-9",
		JobType:      "UPDATE_STATISTICS",
		ReceiveCount: 6,
		Reason:       "exceeded 5 receives",
		Metadata:     map[string]string{"reason": "ignored", "queue": "brandpulse-jobs"},
	})

	assert.Equal(t, "trigger", event["event_action"])
	assert.Equal(t, "dead_letter:UPDATE_STATISTICS:msg-9", event["dedup_key"])

	section, ok := event["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, notify.SeverityWarning, section["severity"])
	assert.Equal(t, "brandpulse", section["source"])
	assert.Equal(t, "queue-consumer", section["component"])
	assert.Equal(t, "UPDATE_STATISTICS message msg-9 dead-lettered", section["summary"])

	custom, ok := section["custom_details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "exceeded 5 receives", custom["reason"], "metadata never overrides core fields")
	assert.Equal(t, "brandpulse-jobs", custom["queue"])
	assert.Equal(t, 6, custom["receive_count"])
}

func TestSendDeadLetterPostsEvent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "rk", Endpoint: srv.URL})
	require.NoError(t, err)

	err = client.SendDeadLetter(context.Background(), notify.DeadLetterPayload{
		MessageID: "m", JobType: "CLEANUP", Severity: notify.SeverityCritical,
	})
	require.NoError(t, err)
	assert.Equal(t, "rk", got["routing_key"])
	section, _ := got["payload"].(map[string]any)
	assert.Equal(t, notify.SeverityCritical, section["severity"])
}

func TestSendDeadLetterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"status":"invalid event"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "rk", Endpoint: srv.URL})
	require.NoError(t, err)

	err = client.SendDeadLetter(context.Background(), notify.DeadLetterPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid event")
}
