package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/syncgate-sh/syncgate/internal/model"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Publisher sends the final gate report to Google Cloud Pub/Sub so deployment
// dashboards can consume verification results across pipelines.
type Publisher struct {
	client      *pubsub.Client
	publisher   *pubsub.Publisher
	topicPath   string
	gateVersion string
}

// ParseTopicPath parses a full Pub/Sub topic path and returns projectID and topicID.
// Expected format: projects/<project>/topics/<topic>
func ParseTopicPath(topicPath string) (projectID, topicID string, err error) {
	parts := strings.Split(topicPath, "/")
	if len(parts) != 4 || parts[0] != "projects" || parts[2] != "topics" {
		return "", "", fmt.Errorf("invalid topic path %q: expected format projects/<project>/topics/<topic>", topicPath)
	}
	return parts[1], parts[3], nil
}

// NewPublisher creates a new Google Cloud Pub/Sub report publisher.
//
// Authentication is handled via Application Default Credentials (ADC):
//   - Workload Identity (GKE): Auto-detected from metadata server
//   - Service Account JSON key: Set GOOGLE_APPLICATION_CREDENTIALS env var
//   - Default credentials: gcloud auth application-default login
func NewPublisher(ctx context.Context, topicPath, gateVersion string) (*Publisher, error) {
	projectID, topicID, err := ParseTopicPath(topicPath)
	if err != nil {
		return nil, err
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	// Ordering keeps successive gate runs for the same cluster in sequence
	// on the consumer side. The subscription must also enable ordering.
	publisher := client.Publisher(topicID)
	publisher.EnableMessageOrdering = true

	return &Publisher{
		client:      client,
		publisher:   publisher,
		topicPath:   topicPath,
		gateVersion: gateVersion,
	}, nil
}

// Event is the message payload published for each gate run.
type Event struct {
	ID          string            `json:"id"`
	Timestamp   string            `json:"timestamp"`
	EventType   string            `json:"eventType"`
	GateVersion string            `json:"gateVersion"`
	Report      model.FinalReport `json:"report"`
}

// Publish sends the report to the configured topic.
func (p *Publisher) Publish(ctx context.Context, report model.FinalReport) error {
	logger := log.FromContext(ctx)

	event := Event{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		EventType:   "gate_result",
		GateVersion: p.gateVersion,
		Report:      report,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	orderingKey := report.ClusterID
	if orderingKey == "" {
		orderingKey = report.CheckID
	}

	logger.Info("Publishing report to Google Pub/Sub",
		"topic", p.topicPath,
		"eventID", event.ID,
		"orderingKey", orderingKey,
		"status", report.Status,
	)

	attributes := map[string]string{
		"event_type":            "gate_result",
		"status":                string(report.Status),
		"sync_detection_method": string(report.DetectionMethod),
	}
	if report.ClusterID != "" {
		attributes["cluster_id"] = report.ClusterID
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attributes,
		OrderingKey: orderingKey,
	})

	msgID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish report to pubsub: %w", err)
	}

	logger.Info("Report published to Google Pub/Sub",
		"topic", p.topicPath,
		"eventID", event.ID,
		"messageID", msgID,
	)

	return nil
}

// Stop stops the publisher and closes the client
func (p *Publisher) Stop() {
	if p.publisher != nil {
		p.publisher.Stop()
	}
	if p.client != nil {
		_ = p.client.Close()
	}
}
