// Package events publishes domain events (account created, review added) to
// downstream systems. Delivery is best effort: callers log failures and move
// on.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
)

// Event is one notification. Detail is JSON-encoded on publish.
type Event struct {
	Source     string
	DetailType string
	Detail     any
}

// Notifier publishes events.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// PutEventsAPI is the part of *eventbridge.Client the notifier uses.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var ErrEventRejected = errors.New("event rejected by bus")

// EventBridgeNotifier sends each event as a single PutEvents entry.
type EventBridgeNotifier struct {
	client  PutEventsAPI
	busName string
}

func NewEventBridgeNotifier(client PutEventsAPI, busName string) *EventBridgeNotifier {
	return &EventBridgeNotifier{client: client, busName: busName}
}

func (n *EventBridgeNotifier) Publish(ctx context.Context, e Event) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("encode event detail: %w", err)
	}

	out, err := n.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(n.busName),
			Source:       aws.String(e.Source),
			DetailType:   aws.String(e.DetailType),
			Detail:       aws.String(string(detail)),
			Resources:    []string{},
		}},
	})
	if err != nil {
		return fmt.Errorf("put events: %w", err)
	}
	if out.FailedEntryCount > 0 {
		for _, entry := range out.Entries {
			if entry.ErrorCode != nil {
				return fmt.Errorf("%w: %s: %s", ErrEventRejected, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
		return ErrEventRejected
	}
	return nil
}

// LogNotifier writes events to the log. Used when no bus is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "events")}
}

func (n *LogNotifier) Publish(ctx context.Context, e Event) error {
	n.logger.Info(ctx, "event", "source", e.Source, "detail_type", e.DetailType, "detail", e.Detail)
	return nil
}
