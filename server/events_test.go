package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSubject(t *testing.T) {
	assert.Equal(t, "pixelarena.events.player_death", eventSubject("pixelarena", EventPlayerDeath))
	assert.Equal(t, "arena.events.enemy_killed", eventSubject("arena", EventEnemyKilled))
}

func TestNewEventSinkWithoutURL(t *testing.T) {
	sink, err := NewEventSink(EventsConfig{})
	require.NoError(t, err)
	assert.IsType(t, nopSink{}, sink)
	assert.NoError(t, sink.Publish(Event{Type: EventPlayerJoined}))
	sink.Close()
}

func TestNewEventSinkUnreachable(t *testing.T) {
	_, err := NewEventSink(EventsConfig{NATSURL: "nats://127.0.0.1:1"})
	assert.ErrorContains(t, err, "connect nats")
}
