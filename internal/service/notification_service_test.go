package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/worker"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, recipient, eventType string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, eventType+"->"+recipient)
	return n.err
}

// inlineQueue runs jobs synchronously.
type inlineQueue struct{}

func (inlineQueue) Submit(job worker.Job) error {
	_ = job.Run(context.Background())
	return nil
}

type fullQueue struct{}

func (fullQueue) Submit(worker.Job) error {
	return apperrors.ErrNotificationFailure
}

func TestNotificationServiceRecipients(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &recordingNotifier{}
	NewNotificationService(dispatcher, inlineQueue{}, notifier, nil, nil).RegisterHandlers()

	authority := "admin-1"
	assignee := "staff-1"
	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:        events.EventComplaintEscalated,
		ComplaintID: "c-1",
		Payload:     events.ComplaintEscalatedPayload{EscalatedTo: &authority, AssignedTo: &assignee},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:        events.EventComplaintAssigned,
		ComplaintID: "c-1",
		Payload:     events.ComplaintAssignedPayload{AssigneeStaffID: assignee},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:        events.EventComplaintResolved,
		ComplaintID: "c-1",
		Payload:     events.ComplaintResolvedPayload{ResolvedBy: assignee, ReporterID: "citizen-1"},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:        events.EventComplaintSLABreached,
		ComplaintID: "c-2",
		Payload:     events.ComplaintSLABreachedPayload{},
	}))

	assert.Equal(t, []string{
		"complaint_escalated->admin-1",
		"complaint_escalated->staff-1",
		"complaint_assigned->staff-1",
		"complaint_resolved->citizen-1",
		"complaint_resolved->staff-1",
	}, notifier.sent)
}

func TestNotificationServiceFailures(t *testing.T) {
	t.Run("delivery failure stays inside the job", func(t *testing.T) {
		dispatcher := events.NewInMemoryDispatcher()
		notifier := &recordingNotifier{err: errors.New("webhook down")}
		NewNotificationService(dispatcher, inlineQueue{}, notifier, nil, nil).RegisterHandlers()

		err := dispatcher.Publish(context.Background(), events.Event{
			Type:    events.EventComplaintAssigned,
			Payload: events.ComplaintAssignedPayload{AssigneeStaffID: "staff-1"},
		})
		assert.NoError(t, err)
		assert.Len(t, notifier.sent, 1)
	})

	t.Run("full queue surfaces as notification failure", func(t *testing.T) {
		dispatcher := events.NewInMemoryDispatcher()
		NewNotificationService(dispatcher, fullQueue{}, &recordingNotifier{}, nil, nil).RegisterHandlers()

		err := dispatcher.Publish(context.Background(), events.Event{
			Type:    events.EventComplaintAssigned,
			Payload: events.ComplaintAssignedPayload{AssigneeStaffID: "staff-1"},
		})
		assert.ErrorIs(t, err, apperrors.ErrNotificationFailure)
	})
}

func TestMultiNotifier(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: apperrors.ErrNotificationFailure}

	err := MultiNotifier{failing, ok}.Send(context.Background(), "staff-1", "complaint_assigned", nil)
	assert.ErrorIs(t, err, apperrors.ErrNotificationFailure)
	assert.Len(t, ok.sent, 1)
}
