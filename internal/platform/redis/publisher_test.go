package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/lexis-api/internal/events"
)

type fakeClient struct {
	channel string
	message []byte
	err     error
}

func (f *fakeClient) Publish(_ context.Context, channel string, message interface{}) *goredis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	return goredis.NewIntResult(1, f.err)
}

func TestPublisherHandleEvent(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	p := NewPublisher(client, "test.events", nil)

	event, err := events.NewEvent(events.TypeRewardGranted, uuid.New(),
		events.RewardGrantedPayload{Source: events.SourceSession, Points: 12}, time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, p.HandleEvent(context.Background(), event))
	assert.Equal(t, "test.events", client.channel)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(client.message, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, events.TypeRewardGranted, decoded.Type)
}

func TestPublisherPropagatesErrors(t *testing.T) {
	t.Parallel()

	p := NewPublisher(&fakeClient{err: errors.New("connection refused")}, "", nil)
	event, err := events.NewEvent(events.TypeStreakBroken, uuid.New(), events.StreakBrokenPayload{}, time.Now())
	require.NoError(t, err)

	err = p.HandleEvent(context.Background(), event)
	assert.ErrorContains(t, err, "connection refused")
}

func TestConnectRequiresAddress(t *testing.T) {
	t.Parallel()

	_, _, err := Connect(context.Background(), Options{}, nil)
	assert.Error(t, err)
}
