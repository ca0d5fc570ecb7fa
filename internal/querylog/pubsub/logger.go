// Package pubsub publishes query log entries to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/searchconsole/internal/querylog"
)

// Logger wraps a Pub/Sub topic.
type Logger struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New connects to Pub/Sub and verifies the topic exists. The returned Logger
// owns the client.
func New(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Logger, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("querylog.project_id and querylog.topic_id are required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &Logger{client: client, topic: topic}, nil
}

// NewWithTopic wraps an existing topic handle; the caller keeps the client.
func NewWithTopic(topic *pubsub.Topic) *Logger {
	return &Logger{topic: topic}
}

// Log marshals e to JSON and waits for the publish to be acknowledged.
func (l *Logger) Log(ctx context.Context, e querylog.Entry) error {
	if l.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"query_id": e.ID,
			"kind":     e.Kind,
		},
	}
	if _, err := l.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending publishes and releases the client if owned.
func (l *Logger) Close() error {
	if l.topic != nil {
		l.topic.Stop()
	}
	if l.client != nil {
		if err := l.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}
