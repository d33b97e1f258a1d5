package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kpiengine/models"
)

// Notifier hands alert events to the external notification collaborator.
// Delivery, retries and read receipts are its problem, not the engine's.
type Notifier interface {
	Push(ctx context.Context, event models.AlertEvent) error
}

type webhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) Notifier {
	return &webhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *webhookNotifier) Push(ctx context.Context, event models.AlertEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert sink returned %d", resp.StatusCode)
	}
	return nil
}

type noopNotifier struct{}

// NewNoopNotifier is wired when no alert sink is configured; alerts are
// still stored and queryable.
func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) Push(context.Context, models.AlertEvent) error { return nil }
