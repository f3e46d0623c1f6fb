package alerts

import (
	"context"
	"log"
)

// LogAlerter writes alerts to the process log. It is always on and
// serves as the fallback sink when no webhooks are configured.
type LogAlerter struct{}

func NewLogAlerter() *LogAlerter {
	return &LogAlerter{}
}

func (*LogAlerter) IsEnabled() bool {
	return true
}

func (*LogAlerter) Alert(_ context.Context, alert *StatusAlert) error {
	log.Printf("ALERT [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
