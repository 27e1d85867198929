package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
)

type publisherStub struct {
	published []models.NotificationMessage
	err       error
}

func (p *publisherStub) Publish(ctx context.Context, msg models.NotificationMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func TestNotificationWorkerPublishes(t *testing.T) {
	publisher := &publisherStub{}
	metrics := NewMetricsService()
	worker := NewNotificationWorker(publisher, metrics, nil)

	msg := models.NotificationMessage{Type: models.NotificationSubstitutionAssigned, To: "bob@school.test"}
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "rec-1", Payload: msg}))
	require.Len(t, publisher.published, 1)
	assert.Equal(t, "bob@school.test", publisher.published[0].To)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues("published")))
}

func TestNotificationWorkerReturnsPublishErrorForRetry(t *testing.T) {
	worker := NewNotificationWorker(&publisherStub{err: errors.New("channel closed")}, nil, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "rec-1", Payload: models.NotificationMessage{To: "x@y.z"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rec-1")
}

func TestNotificationWorkerDropsUnknownPayload(t *testing.T) {
	publisher := &publisherStub{}
	worker := NewNotificationWorker(publisher, nil, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "odd", Payload: "not a message"}))
	assert.Empty(t, publisher.published)
}

func TestNotificationWorkerDeadLetterCountsFailure(t *testing.T) {
	metrics := NewMetricsService()
	worker := NewNotificationWorker(&publisherStub{}, metrics, nil)

	worker.DeadLetter(jobs.Job{ID: "rec-1", Attempt: 3}, errors.New("gave up"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues("failed")))
}
