package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bastionproject/bastion/internal/logging"
)

// Channel is one notification transport. Channels are invoked
// independently: a failing channel never suppresses the others and never
// blocks alert persistence.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// LogChannel writes alerts to the structured log. Always enabled.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Send(_ context.Context, alert *Alert) error {
	logging.Warn("ALERT",
		logging.String("type", string(alert.Type)),
		logging.String("severity", string(alert.Severity)),
		logging.String("message", alert.Message))
	return nil
}

// WebhookChannel POSTs the alert as JSON to a configured URL.
type WebhookChannel struct {
	URL    string
	client *http.Client
}

// NewWebhookChannel creates a webhook channel with a bounded client.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		URL:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, alert *Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Notifier fans an alert out to every channel in parallel with per-channel
// error isolation.
type Notifier struct {
	channels []Channel
}

// NewNotifier creates a notifier over the given channels.
func NewNotifier(channels ...Channel) *Notifier {
	return &Notifier{channels: channels}
}

// Dispatch sends the alert through every channel, waiting for all of them.
func (n *Notifier) Dispatch(ctx context.Context, alert *Alert) {
	var wg sync.WaitGroup
	for _, ch := range n.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, alert); err != nil {
				logging.Warn("notification channel failed",
					logging.String("channel", ch.Name()),
					logging.String("alert", alert.ID),
					logging.Err(err))
			}
		}(ch)
	}
	wg.Wait()
}
