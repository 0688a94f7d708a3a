package notify

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
	"github.com/proxypulse/proxypulse/internal/logger"
)

func testAlert() Alert {
	return Alert{
		Rule: &entities.AlertRule{
			Name:      "high error rate",
			Metric:    "errorRate",
			Operator:  ">",
			Threshold: 0.5,
			Interval:  entities.Interval5m,
		},
		AgentID:   "agent-1",
		AgentName: "edge",
		Value:     0.82,
	}
}

func discardLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func TestMessage(t *testing.T) {
	msg := Message(testAlert())
	assert.Equal(t, "[edge] high error rate: errorRate > 0.5 (current 0.82, interval 5m)", msg)
}

func TestMessageFallsBackToAgentID(t *testing.T) {
	alert := testAlert()
	alert.AgentName = ""
	assert.Contains(t, Message(alert), "[agent-1]")
}

func TestLogTransportAlwaysSucceeds(t *testing.T) {
	transport := NewLogTransport(discardLogger())

	delivery := transport.Deliver(t.Context(), testAlert())
	assert.True(t, delivery.Success)
	assert.Contains(t, delivery.Detail, "high error rate")
}

func TestNewShoutrrrTransportRequiresURLs(t *testing.T) {
	_, err := NewShoutrrrTransport(nil, discardLogger())
	assert.Error(t, err)
}

func TestShoutrrrTransportDeliverSuccess(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, "http://webhook.local/hook",
		httpmock.NewStringResponder(http.StatusOK, "ok"))

	transport, err := NewShoutrrrTransport(
		[]string{"generic://webhook.local/hook?disabletls=yes"}, discardLogger())
	require.NoError(t, err)

	delivery := transport.Deliver(t.Context(), testAlert())
	assert.True(t, delivery.Success)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestShoutrrrTransportDeliverFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, "http://webhook.local/hook",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	transport, err := NewShoutrrrTransport(
		[]string{"generic://webhook.local/hook?disabletls=yes"}, discardLogger())
	require.NoError(t, err)

	delivery := transport.Deliver(t.Context(), testAlert())
	assert.False(t, delivery.Success)
	assert.NotEmpty(t, delivery.Detail)
}

func TestShoutrrrTransportDeliverTimeout(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, "http://webhook.local/hook",
		func(req *http.Request) (*http.Response, error) {
			time.Sleep(300 * time.Millisecond)
			return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
		})

	transport, err := NewShoutrrrTransport(
		[]string{"generic://webhook.local/hook?disabletls=yes"}, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	delivery := transport.Deliver(ctx, testAlert())
	assert.False(t, delivery.Success)
	assert.Contains(t, delivery.Detail, "timed out")
}
