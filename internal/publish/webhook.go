package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/syncgate-sh/syncgate/internal/model"
	"resty.dev/v3"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// WebhookEvent is the JSON envelope posted to the callback endpoint.
type WebhookEvent struct {
	EventID     string            `json:"eventId"`
	OccurredAt  time.Time         `json:"occurredAt"`
	GateVersion string            `json:"gateVersion"`
	Report      model.FinalReport `json:"report"`
}

// WebhookPublisher posts the final report to a CI/CD callback URL.
type WebhookPublisher struct {
	client      *resty.Client
	endpoint    string
	gateVersion string
}

func NewWebhookPublisher(endpoint, gateVersion string) *WebhookPublisher {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &WebhookPublisher{
		client:      client,
		endpoint:    endpoint,
		gateVersion: gateVersion,
	}
}

func (p *WebhookPublisher) Publish(ctx context.Context, report model.FinalReport) error {
	logger := log.FromContext(ctx)

	event := WebhookEvent{
		EventID:     uuid.New().String(),
		OccurredAt:  time.Now().UTC(),
		GateVersion: p.gateVersion,
		Report:      report,
	}

	logger.Info("Publishing report to webhook",
		"endpoint", p.endpoint,
		"eventID", event.EventID,
		"status", report.Status,
	)

	var errorResponse map[string]interface{}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		SetError(&errorResponse).
		Post(p.endpoint)

	if err != nil {
		return fmt.Errorf("failed to send report to webhook: %w", err)
	}

	if !resp.IsSuccess() {
		logger.Error(nil, "Webhook returned error",
			"statusCode", resp.StatusCode(),
			"status", resp.Status(),
			"error", errorResponse,
			"endpoint", p.endpoint,
			"eventID", event.EventID,
		)
		return fmt.Errorf("webhook returned error status %d: %s", resp.StatusCode(), resp.String())
	}

	logger.Info("Report published to webhook",
		"endpoint", p.endpoint,
		"eventID", event.EventID,
		"statusCode", resp.StatusCode(),
	)

	return nil
}
