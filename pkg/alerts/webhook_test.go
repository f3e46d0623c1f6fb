package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

func testTransition(direction models.TransitionDirection) models.Transition {
	from, to := models.StateUp, models.StateDown
	if direction == models.DirectionCameUp {
		from, to = models.StateDown, models.StateUp
	}

	return models.NewTransition(
		models.InterfaceKey{Exporter: "10.0.0.1", Iface: "0"},
		from, to, 120,
		time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	)
}

func TestNewStatusAlert(t *testing.T) {
	tests := []struct {
		name      string
		direction models.TransitionDirection
		wantLevel AlertLevel
	}{
		{name: "went down is an error", direction: models.DirectionWentDown, wantLevel: Error},
		{name: "came up is informational", direction: models.DirectionCameUp, wantLevel: Info},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := NewStatusAlert(testTransition(tt.direction))

			assert.Equal(t, tt.wantLevel, alert.Level)
			assert.Equal(t, "10.0.0.1", alert.Exporter)
			assert.Equal(t, "0", alert.Iface)
			assert.NotEmpty(t, alert.Timestamp)
			assert.Contains(t, alert.Title, "10.0.0.1/0")
		})
	}
}

func TestWebhookAlerterSendsPayload(t *testing.T) {
	var received StatusAlert

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	alerter := NewWebhookAlerter(WebhookConfig{
		Enabled: true,
		URL:     server.URL,
		Headers: []Header{{Key: "X-Api-Key", Value: "secret"}},
	})

	alert := NewStatusAlert(testTransition(models.DirectionWentDown))

	require.NoError(t, alerter.Alert(context.Background(), alert))
	assert.Equal(t, alert.Title, received.Title)
	assert.Equal(t, Error, received.Level)
}

func TestWebhookAlerterTemplate(t *testing.T) {
	var body map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	alerter := NewWebhookAlerter(WebhookConfig{
		Enabled:  true,
		URL:      server.URL,
		Template: `{"text": {{json .alert.Message}}}`,
	})

	require.NoError(t, alerter.Alert(context.Background(), NewStatusAlert(testTransition(models.DirectionWentDown))))
	assert.Contains(t, body["text"], "went down")
}

func TestWebhookAlerterCooldown(t *testing.T) {
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	alerter := NewWebhookAlerter(WebhookConfig{
		Enabled:  true,
		URL:      server.URL,
		Cooldown: time.Minute,
	})

	alert := NewStatusAlert(testTransition(models.DirectionWentDown))

	require.NoError(t, alerter.Alert(context.Background(), alert))

	err := alerter.Alert(context.Background(), alert)
	require.Error(t, err)
	assert.ErrorIs(t, err, errWebhookCooldown)
	assert.Equal(t, 1, calls)
}

func TestWebhookAlerterDisabled(t *testing.T) {
	alerter := NewWebhookAlerter(WebhookConfig{Enabled: false})

	err := alerter.Alert(context.Background(), NewStatusAlert(testTransition(models.DirectionWentDown)))

	assert.ErrorIs(t, err, errWebhookDisabled)
	assert.False(t, alerter.IsEnabled())
}

func TestWebhookAlerterNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	alerter := NewWebhookAlerter(WebhookConfig{Enabled: true, URL: server.URL})

	err := alerter.Alert(context.Background(), NewStatusAlert(testTransition(models.DirectionWentDown)))

	require.Error(t, err)
	assert.ErrorIs(t, err, errWebhookStatus)
}
