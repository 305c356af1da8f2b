package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherPublish(t *testing.T) {
	t.Run("fills id and timestamp", func(t *testing.T) {
		d := NewInMemoryDispatcher()
		var got Event
		d.Subscribe(EventComplaintAssigned, func(_ context.Context, e Event) error {
			got = e
			return nil
		})

		require.NoError(t, d.Publish(context.Background(), Event{Type: EventComplaintAssigned, ComplaintID: "c-1"}))
		assert.NotEmpty(t, got.ID)
		assert.False(t, got.Timestamp.IsZero())
		assert.Equal(t, "c-1", got.ComplaintID)
	})

	t.Run("failing handler does not stop others", func(t *testing.T) {
		d := NewInMemoryDispatcher()
		boom := errors.New("boom")
		calls := 0
		d.Subscribe(EventComplaintEscalated, func(context.Context, Event) error { return boom })
		d.Subscribe(EventComplaintEscalated, func(context.Context, Event) error {
			calls++
			return nil
		})

		err := d.Publish(context.Background(), Event{Type: EventComplaintEscalated})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("no subscribers is a no-op", func(t *testing.T) {
		d := NewInMemoryDispatcher()
		assert.NoError(t, d.Publish(context.Background(), Event{Type: EventComplaintResolved}))
	})
}
