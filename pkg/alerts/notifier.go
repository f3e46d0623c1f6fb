package alerts

import (
	"context"
	"errors"
	"log"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

// Notifier fans a transition event out to every configured alerter.
// It is wired into the engine as a transition sink.
type Notifier struct {
	alerters []AlertService
}

func NewNotifier(alerters ...AlertService) *Notifier {
	return &Notifier{alerters: alerters}
}

// Publish converts the transition into an alert and delivers it.
// Disabled and cooling-down alerters are skipped without failing the
// whole fan-out.
func (n *Notifier) Publish(ctx context.Context, t models.Transition) error {
	alert := NewStatusAlert(t)

	var firstErr error

	for _, alerter := range n.alerters {
		if !alerter.IsEnabled() {
			continue
		}

		if err := alerter.Alert(ctx, alert); err != nil {
			if errors.Is(err, errWebhookCooldown) {
				continue
			}

			log.Printf("Error sending alert for %s: %v", t.Key, err)

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
