package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublisherImmediate(t *testing.T) {
	p := NewMemoryPublisher()
	msg := EntityChanged{Kind: ChangeAdded, EntityType: "stacks", EntityID: "s1"}

	require.NoError(t, p.Publish(context.Background(), msg, 0))
	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, msg, msgs[0])
}

func TestMemoryPublisherDelayed(t *testing.T) {
	p := NewMemoryPublisher()
	msg := EntityChanged{Kind: ChangeSaved, EntityType: "stacks"}

	require.NoError(t, p.Publish(context.Background(), msg, 10*time.Millisecond))
	// Publish must not block for the delay; the message lands afterwards.
	assert.Empty(t, p.Messages())
	assert.Eventually(t, func() bool {
		return len(p.Messages()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRedisPublisherDelivers(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "entity-changes")
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(rdb, "entity-changes", nil)
	msg := EntityChanged{
		Kind:           ChangeRemoved,
		EntityType:     "events",
		OrganizationID: "org-1",
	}
	require.NoError(t, p.Publish(ctx, msg, 0))

	select {
	case raw := <-sub.Channel():
		var got EntityChanged
		require.NoError(t, json.Unmarshal([]byte(raw.Payload), &got))
		assert.Equal(t, msg, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestEntityChangedJSONShape(t *testing.T) {
	msg := EntityChanged{Kind: ChangeSaved, EntityType: "stacks", ProjectID: "p1"}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	// Empty owner and id fields are omitted so subscribers can key on
	// presence.
	assert.JSONEq(t, `{"kind":"saved","entity_type":"stacks","project_id":"p1"}`, string(raw))
}
