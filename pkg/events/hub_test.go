package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/models"
)

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub()

	_, ch1 := hub.Subscribe()
	_, ch2 := hub.Subscribe()
	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Publish(NewStatsEvent(map[string]int{"tasks": 3}))

	for _, ch := range []<-chan Event{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, ChannelStats, ev.Channel)
		payload, ok := ev.Payload.(StatsPayload)
		require.True(t, ok)
		assert.Equal(t, 3, payload.Collections["tasks"])
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()

	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount())

	// Double unsubscribe is a no-op, not a panic.
	hub.Unsubscribe(id)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()

	_, ch := hub.Subscribe()

	// Fill the buffer and then some; Publish must never block.
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(NewTasksEvent(nil))
	}

	assert.Equal(t, int64(10), hub.Dropped())
	assert.Len(t, ch, subscriberBuffer)
}

func TestHub_PublishWithNoSubscribers(t *testing.T) {
	hub := NewHub()
	hub.Publish(NewTasksEvent(nil))
	assert.Equal(t, int64(0), hub.Dropped())
}

func TestEventConstructors(t *testing.T) {
	tasksEv := NewTasksEvent([]*models.Task{{ID: "t1"}})
	assert.Equal(t, ChannelTasks, tasksEv.Channel)
	tasksPayload, ok := tasksEv.Payload.(TasksPayload)
	require.True(t, ok)
	require.Len(t, tasksPayload.Tasks, 1)
	assert.Equal(t, "t1", tasksPayload.Tasks[0].ID)

	agentsEv := NewAgentsEvent(map[string]map[string]models.AgentStatus{
		"t1": {"a1": models.AgentStatusCompleted},
	})
	assert.Equal(t, ChannelAgents, agentsEv.Channel)
	agentsPayload, ok := agentsEv.Payload.(AgentsPayload)
	require.True(t, ok)
	assert.Equal(t, models.AgentStatusCompleted, agentsPayload.Agents["t1"]["a1"])
}
