package events

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bytesBuffer is a goroutine-safe bytes.Buffer for log capture.
type bytesBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *bytesBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	userID, sourceID := uuid.New(), uuid.New()
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	payload := RewardGrantedPayload{
		Source:     SourceCheckIn,
		SourceID:   sourceID,
		BasePoints: 10,
		Multiplier: 1.2,
		Points:     12,
		StreakDays: 8,
	}

	event, err := NewEvent(TypeRewardGranted, userID, payload, at)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TypeRewardGranted, event.Type)
	assert.Equal(t, userID, event.UserID)
	assert.Equal(t, at, event.OccurredAt)

	var decoded RewardGrantedPayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewEventRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	_, err := NewEvent(TypeItemMastered, uuid.New(), make(chan int), time.Now())
	assert.Error(t, err)
}

func TestEventJSONShape(t *testing.T) {
	t.Parallel()

	event, err := NewEvent(TypeItemMastered, uuid.New(),
		ItemMasteredPayload{ItemID: uuid.New(), Level: domain.MasteryMastered}, time.Now().UTC())
	require.NoError(t, err)

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, TypeItemMastered, generic["type"])
	assert.Equal(t, "MASTERED", generic["payload"].(map[string]any)["level"])
}

func TestItemMasteredPayloadCarriesLevelName(t *testing.T) {
	t.Parallel()

	itemID := uuid.New()
	event, err := NewEvent(TypeItemMastered, uuid.New(),
		ItemMasteredPayload{ItemID: itemID, Level: domain.MasteryMastered}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(event.Payload), `"level":"MASTERED"`)

	var decoded ItemMasteredPayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, itemID, decoded.ItemID)
	assert.Equal(t, domain.MasteryMastered, decoded.Level)
}
