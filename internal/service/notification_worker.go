package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
)

type notificationPublisher interface {
	Publish(ctx context.Context, msg models.NotificationMessage) error
}

// NotificationWorker publishes queued substitute notifications to the broker.
type NotificationWorker struct {
	publisher notificationPublisher
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationWorker constructs a worker.
func NewNotificationWorker(publisher notificationPublisher, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{publisher: publisher, metrics: metrics, logger: logger}
}

// Handle is a jobs.Handler.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(models.NotificationMessage)
	if !ok {
		w.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := w.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish notification %s: %w", job.ID, err)
	}
	w.metrics.RecordNotification(true)
	w.logger.Debug("notification published", zap.String("job_id", job.ID), zap.String("to", msg.To))
	return nil
}

// DeadLetter is a jobs.DeadLetterFunc recording undeliverable notifications.
func (w *NotificationWorker) DeadLetter(job jobs.Job, err error) {
	w.metrics.RecordNotification(false)
	w.logger.Error("notification dropped", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
}
