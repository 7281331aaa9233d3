package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
	"github.com/noah-isme/sma-adp-allotment/pkg/jobs"
)

type jobQueue interface {
	TryEnqueue(job jobs.Job) error
	Len() int
}

// NotificationService hands allotment events to the background queue. Delivery itself
// (WhatsApp, email) happens outside this service; the default handler only logs.
type NotificationService struct {
	queue  jobQueue
	logger *zap.Logger
}

// NewNotificationService constructs the publisher. A nil queue makes Publish log-only.
func NewNotificationService(queue jobQueue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, logger: logger}
}

// Publish enqueues an event without blocking the caller. A full queue drops the event with a warning.
func (s *NotificationService) Publish(ctx context.Context, event models.AllotmentEvent) {
	if s == nil {
		return
	}
	if s.queue == nil {
		s.logger.Debug("allotment event", zap.String("type", string(event.Type)), zap.String("booking_id", event.Booking.ID))
		return
	}
	job := jobs.Job{
		ID:      fmt.Sprintf("%s:%s", event.Type, event.Booking.ID),
		Type:    string(event.Type),
		Payload: event,
	}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("allotment event dropped", zap.String("job_id", job.ID), zap.Int("queue_depth", s.queue.Len()), zap.Error(err))
	}
}

// NotificationHandler returns the queue handler that records delivered events.
func NotificationHandler(logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.AllotmentEvent)
		if !ok {
			return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
		}
		fields := []zap.Field{
			zap.String("type", string(event.Type)),
			zap.String("booking_id", event.Booking.ID),
			zap.Strings("resources", event.Booking.ResourceIDs()),
			zap.String("slot", event.Booking.Interval.String()),
			zap.String("purpose", event.Booking.Purpose),
		}
		if len(event.Booking.Attendees) > 0 {
			fields = append(fields, zap.Strings("attendees", event.Booking.Attendees))
		}
		if event.Previous != nil {
			fields = append(fields, zap.String("previous_booking_id", event.Previous.ID))
		}
		logger.Info("allotment notification", fields...)
		return nil
	}
}
