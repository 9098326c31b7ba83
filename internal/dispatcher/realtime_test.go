package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnt/tada/internal/pipeline"
)

func TestLocalBusPublishDeliversToAllSubscribersOfTopic(t *testing.T) {
	bus := NewLocalBus(4)
	chA, unsubA := bus.Subscribe("a", "topic-1")
	defer unsubA()
	chB, unsubB := bus.Subscribe("b", "topic-1")
	defer unsubB()
	chOther, unsubOther := bus.Subscribe("c", "topic-2")
	defer unsubOther()

	rec := pipeline.OutputRecord{ID: "evt-1"}
	require.NoError(t, bus.Publish("topic-1", rec))

	assert.Equal(t, "evt-1", (<-chA).ID)
	assert.Equal(t, "evt-1", (<-chB).ID)
	select {
	case <-chOther:
		t.Fatal("subscriber on a different topic should not receive the record")
	default:
	}
}

func TestLocalBusDropsOldestWhenQueueFull(t *testing.T) {
	bus := NewLocalBus(2)
	ch, unsubscribe := bus.Subscribe("a", "topic-1")
	defer unsubscribe()

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish("topic-1", pipeline.OutputRecord{ID: string(rune('a' + i))}))
	}

	first := <-ch
	second := <-ch
	assert.Equal(t, "b", first.ID)
	assert.Equal(t, "c", second.ID)
}

func TestLocalBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewLocalBus(4)
	ch, unsubscribe := bus.Subscribe("a", "topic-1")
	unsubscribe()

	require.NoError(t, bus.Publish("topic-1", pipeline.OutputRecord{ID: "evt-1"}))

	_, open := <-ch
	assert.False(t, open)
}

func TestLocalBusSubscriberCount(t *testing.T) {
	bus := NewLocalBus(4)
	assert.Equal(t, 0, bus.SubscriberCount("topic-1"))
	_, unsub1 := bus.Subscribe("a", "topic-1")
	_, unsub2 := bus.Subscribe("b", "topic-1")
	assert.Equal(t, 2, bus.SubscriberCount("topic-1"))
	unsub1()
	assert.Equal(t, 1, bus.SubscriberCount("topic-1"))
	unsub2()
}

func TestLocalBusHealthAlwaysOK(t *testing.T) {
	bus := NewLocalBus(4)
	assert.NoError(t, bus.Health())
}
