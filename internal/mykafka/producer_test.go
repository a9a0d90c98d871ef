package mykafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(nil)
	assert.Error(t, err)
}

func TestNewProducer_DoesNotDial(t *testing.T) {
	p, err := NewProducer([]string{"127.0.0.1:1"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestNop_DiscardsEvents(t *testing.T) {
	var pub Publisher = Nop{}
	assert.NoError(t, pub.PublishEvent(context.Background(), "inventory_events", "1", NewEvent(EventMedicineCreated, 1, 2, nil)))
}

func TestEvent_JSONShape(t *testing.T) {
	b, err := json.Marshal(NewEvent(EventUserRegistered, 5, 1, map[string]string{"role": "member"}))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "user_registered", m["type"])
	assert.EqualValues(t, 5, m["entity_id"])
	assert.EqualValues(t, 1, m["actor_id"])
	assert.Contains(t, m, "occurred_at")
}
