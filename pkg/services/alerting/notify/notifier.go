package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/models/domain"
)

// Notifier delivers one alert firing over a single channel. Delivery is
// best-effort; the caller records the outcome but never retries here.
type Notifier interface {
	Notify(ctx context.Context, firing domain.AlertFiring) error
}

// SlackNotifier posts firings to an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

func (n *SlackNotifier) Notify(ctx context.Context, firing domain.AlertFiring) error {
	if n.webhookURL == "" {
		return fmt.Errorf("slack webhook url is not configured")
	}

	payload := slackPayload{
		Text: fmt.Sprintf(":rotating_light: *CostPulse Alert: %s*\n%s", firing.AlertName, firing.Message),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes firings to the log. Stands in for channels without a
// configured transport, such as email.
type LogNotifier struct {
	channel domain.NotificationChannel
}

func NewLogNotifier(channel domain.NotificationChannel) *LogNotifier {
	return &LogNotifier{channel: channel}
}

func (n *LogNotifier) Notify(ctx context.Context, firing domain.AlertFiring) error {
	zerolog.Ctx(ctx).Info().
		Str("channel", string(n.channel)).
		Str("alert_id", firing.AlertID).
		Str("alert_name", firing.AlertName).
		Float64("current_value", firing.CurrentValue).
		Msg(firing.Message)
	return nil
}
