package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(context.Background(), NewEvent(EventJobEnqueued, JobEventData("job-1", nil)))

	select {
	case ev := <-ch:
		assert.Equal(t, EventJobEnqueued, ev.Type)
		assert.Equal(t, "job-1", ev.Data["job_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	ch1, unsub1 := bus.Subscribe()
	defer unsub1()
	ch2, unsub2 := bus.Subscribe()
	defer unsub2()

	bus.Publish(context.Background(), NewEvent(EventWorkerJoined, nil))

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, EventWorkerJoined, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe()
	assert.Equal(t, 1, bus.SubscriberCount())
	unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBus_PublishWithNoSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), NewEvent(EventJobCompleted, nil))
	})
}

func TestEvent_ToJSON_RoundTrip(t *testing.T) {
	ev := NewEvent(EventJobDLQ, JobEventData("job-2", map[string]interface{}{"error": "boom"}))
	data, err := ev.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "job.dlq")
	assert.Contains(t, string(data), "job-2")
}
