package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/item-engine/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// RunSummary is the payload posted to the configured webhook after a run.
type RunSummary struct {
	RunID          string    `json:"runId"`
	Status         string    `json:"status"`
	TotalCount     int       `json:"totalCount"`
	SucceededCount int       `json:"succeededCount"`
	FailedCount    int       `json:"failedCount"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// Notifier delivers run summaries to an external endpoint.
type Notifier interface {
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
}

// WebhookNotifier posts run summaries to a webhook endpoint.
type WebhookNotifier struct {
	client   *resty.Client
	endpoint string
}

var _ Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(endpoint string) (*WebhookNotifier, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookNotifierWithClient(endpoint, client)
}

func NewWebhookNotifierWithClient(endpoint string, client *resty.Client) (*WebhookNotifier, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookNotifier{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

// NewRunSummary builds the webhook payload from a finished run.
func NewRunSummary(run *domain.ProcessRun) RunSummary {
	if run == nil {
		return RunSummary{}
	}

	return RunSummary{
		RunID:          run.ID,
		Status:         run.Status.String(),
		TotalCount:     run.TotalCount,
		SucceededCount: run.SucceededCount,
		FailedCount:    run.FailedCount,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
	}
}

func (n *WebhookNotifier) NotifyRunCompleted(ctx context.Context, summary RunSummary) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("notifier is not initialized")
	}
	if strings.TrimSpace(summary.RunID) == "" {
		return fmt.Errorf("run id is required")
	}

	response, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(summary).
		Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(response.String())
	if body == "" {
		return fmt.Errorf("webhook returned status %d", statusCode)
	}
	return fmt.Errorf("webhook returned status %d: %s", statusCode, body)
}
