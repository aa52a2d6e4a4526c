package worker

import (
	"context"
	"log"

	"commission-service/internal/broker"
	"commission-service/internal/service"
)

// InvalidationWorker consumes agent events from other replicas and drops the
// affected cache entries so reads recompute from orders.
type InvalidationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewInvalidationWorker creates a new invalidation worker
func NewInvalidationWorker(
	consumer *broker.Consumer,
	settlementService *service.SettlementService,
) *InvalidationWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnCommissionPaid(settlementService.HandleCommissionPaid)
	eventHandler.OnAgentRateUpdated(settlementService.HandleAgentRateUpdated)
	eventHandler.OnSecondaryUnlinked(settlementService.HandleSecondaryUnlinked)

	return &InvalidationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *InvalidationWorker) Start(ctx context.Context) error {
	log.Println("Starting invalidation worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *InvalidationWorker) Stop() error {
	log.Println("Stopping invalidation worker...")
	return w.consumer.Close()
}
