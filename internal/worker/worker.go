package worker

import (
	"context"

	"reservation-service/internal/broker"
	"reservation-service/internal/service"
	"reservation-service/internal/util"

	"go.uber.org/zap"
)

// InventoryWorker runs the idempotent event consumer against the order
// events topic.
type InventoryWorker struct {
	consumer *broker.Consumer
	handler  *service.EventConsumer
	logger   *zap.Logger
}

// NewInventoryWorker creates a new inventory worker
func NewInventoryWorker(consumer *broker.Consumer, handler *service.EventConsumer) *InventoryWorker {
	return &InventoryWorker{
		consumer: consumer,
		handler:  handler,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *InventoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting inventory worker")
	return w.consumer.Run(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *InventoryWorker) Stop() error {
	w.logger.Info("Stopping inventory worker")
	return w.consumer.Close()
}
