package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"commission-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCommissionPaid publishes CommissionPaid event
func (ep *EventPublisher) PublishCommissionPaid(ctx context.Context, event *models.CommissionPaidEvent) error {
	key := fmt.Sprintf("agent-%s-%d", event.AgentTier, event.AgentID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishAgentRateUpdated publishes AgentRateUpdated event
func (ep *EventPublisher) PublishAgentRateUpdated(ctx context.Context, event *models.AgentRateUpdatedEvent) error {
	key := fmt.Sprintf("agent-%s-%d", event.AgentTier, event.AgentID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSecondaryUnlinked publishes SecondaryUnlinked event
func (ep *EventPublisher) PublishSecondaryUnlinked(ctx context.Context, event *models.SecondaryUnlinkedEvent) error {
	key := fmt.Sprintf("agent-%s-%d", models.TierSecondary, event.SecondaryID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onCommissionPaid    func(context.Context, *models.CommissionPaidEvent) error
	onAgentRateUpdated  func(context.Context, *models.AgentRateUpdatedEvent) error
	onSecondaryUnlinked func(context.Context, *models.SecondaryUnlinkedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCommissionPaid registers a handler for CommissionPaid events
func (eh *EventHandler) OnCommissionPaid(handler func(context.Context, *models.CommissionPaidEvent) error) {
	eh.onCommissionPaid = handler
}

// OnAgentRateUpdated registers a handler for AgentRateUpdated events
func (eh *EventHandler) OnAgentRateUpdated(handler func(context.Context, *models.AgentRateUpdatedEvent) error) {
	eh.onAgentRateUpdated = handler
}

// OnSecondaryUnlinked registers a handler for SecondaryUnlinked events
func (eh *EventHandler) OnSecondaryUnlinked(handler func(context.Context, *models.SecondaryUnlinkedEvent) error) {
	eh.onSecondaryUnlinked = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeCommissionPaid:
		if eh.onCommissionPaid != nil {
			var event models.CommissionPaidEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CommissionPaid event: %w", err)
			}
			return eh.onCommissionPaid(ctx, &event)
		}

	case models.EventTypeAgentRateUpdated:
		if eh.onAgentRateUpdated != nil {
			var event models.AgentRateUpdatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal AgentRateUpdated event: %w", err)
			}
			return eh.onAgentRateUpdated(ctx, &event)
		}

	case models.EventTypeSecondaryUnlinked:
		if eh.onSecondaryUnlinked != nil {
			var event models.SecondaryUnlinkedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SecondaryUnlinked event: %w", err)
			}
			return eh.onSecondaryUnlinked(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
