package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
	"github.com/noah-isme/sma-adp-allotment/pkg/jobs"
)

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Len() int {
	return len(q.jobs)
}

func (q *queueStub) TryEnqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestNotificationServicePublish(t *testing.T) {
	queue := &queueStub{}
	svc := NewNotificationService(queue, zap.NewNop())
	event := models.AllotmentEvent{Type: models.EventAllotmentConfirmed, Booking: models.Booking{ID: "b-1"}}

	svc.Publish(context.Background(), event)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "allotment.confirmed:b-1", queue.jobs[0].ID)
	assert.Equal(t, event, queue.jobs[0].Payload)

	core, logs := observer.New(zap.WarnLevel)
	failing := NewNotificationService(&queueStub{err: errors.New("full")}, zap.New(core))
	failing.Publish(context.Background(), event)
	dropped := logs.FilterMessage("allotment event dropped").All()
	require.Len(t, dropped, 1)
	assert.EqualValues(t, 0, dropped[0].ContextMap()["queue_depth"])
}

func TestNotificationHandlerLogsEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := NotificationHandler(zap.New(core))

	err := handler(context.Background(), jobs.Job{ID: "x", Payload: models.AllotmentEvent{
		Type:       models.EventAllotmentRescheduled,
		Booking:    models.Booking{ID: "b-2", ResourceID: "HALL", Interval: at(600, 660), Attendees: []string{"parent-1"}},
		Previous:   &models.Booking{ID: "b-1"},
		OccurredAt: time.Now(),
	}})
	require.NoError(t, err)
	entries := logs.FilterMessage("allotment notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "b-1", entries[0].ContextMap()["previous_booking_id"])

	assert.Error(t, handler(context.Background(), jobs.Job{ID: "bad", Payload: "nope"}))
}

func TestNotificationFlowThroughQueue(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	queue := jobs.NewQueue("notifications", NotificationHandler(zap.New(core)), jobs.QueueConfig{Workers: 2, BufferSize: 8})
	queue.Start(context.Background())

	svc := NewNotificationService(queue, zap.NewNop())
	for i := 0; i < 5; i++ {
		svc.Publish(context.Background(), models.AllotmentEvent{Type: models.EventAllotmentCancelled, Booking: models.Booking{ID: "b"}})
	}
	queue.Stop()
	assert.Equal(t, 5, logs.FilterMessage("allotment notification").Len())
}
