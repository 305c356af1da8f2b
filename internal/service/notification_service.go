package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/observability"
	"github.com/resolvehub/complaint-engine/internal/worker"
)

// JobQueue accepts notification jobs for asynchronous delivery.
type JobQueue interface {
	Submit(job worker.Job) error
}

// NotificationService turns domain events into notifications for the people involved.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      JobQueue
	notifier   Notifier
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue JobQueue, notifier Notifier, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventComplaintCreated,
		events.EventComplaintStatusChanged,
		events.EventComplaintAssigned,
		events.EventComplaintEscalated,
		events.EventComplaintSLABreached,
		events.EventComplaintResolved,
	} {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	var errs []error
	for _, recipient := range recipients(event) {
		recipient := recipient
		err := n.queue.Submit(worker.Job{
			Name: fmt.Sprintf("%s:%s:%s", event.Type, event.ComplaintID, recipient),
			Run: func(ctx context.Context) error {
				err := n.notifier.Send(ctx, recipient, string(event.Type), event)
				n.metrics.RecordNotification(string(event.Type), err == nil)
				return err
			},
		})
		if err != nil {
			n.metrics.RecordNotification(string(event.Type), false)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recipients lists who hears about the event, without duplicates.
func recipients(event events.Event) []string {
	var ids []string
	add := func(id *string) {
		if id == nil || *id == "" {
			return
		}
		for _, existing := range ids {
			if existing == *id {
				return
			}
		}
		ids = append(ids, *id)
	}
	switch p := event.Payload.(type) {
	case events.ComplaintCreatedPayload:
		add(&p.ReporterID)
	case events.ComplaintStatusChangedPayload:
		add(&p.ReporterID)
	case events.ComplaintAssignedPayload:
		add(&p.AssigneeStaffID)
	case events.ComplaintEscalatedPayload:
		add(p.EscalatedTo)
		add(p.AssignedTo)
	case events.ComplaintSLABreachedPayload:
		add(p.AssignedTo)
	case events.ComplaintResolvedPayload:
		add(&p.ReporterID)
		add(&p.ResolvedBy)
	}
	return ids
}

// publish emits event and only logs a failure; callers never fail on notification errors.
func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event publication failed",
			zap.String("event_type", string(event.Type)),
			zap.String("complaint_id", event.ComplaintID),
			zap.Error(err))
	}
}
