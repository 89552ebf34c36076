package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/signalroom/internal/app/connstate"
	"github.com/dkeye/signalroom/internal/app/rooms"
	"github.com/dkeye/signalroom/internal/domain"
)

func TestPublisher_ForwardsEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(context.Background(), "signalroom.events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)
	ch := sub.Channel()

	p := NewPublisher(client, "signalroom.events", 8)
	t.Cleanup(p.Close)

	p.OnRoomEvent(rooms.Event{
		Kind:        rooms.ParticipantJoined,
		RoomID:      "r1",
		Participant: &domain.Participant{SessionID: "s-a", UserID: "alice", Role: domain.RoleHost},
		At:          time.Now(),
	})
	p.OnConnEvent(connstate.Event{Kind: connstate.StateChange, PeerID: "s-a"})
	p.OnConnEvent(connstate.Event{
		Kind:    connstate.ReconnectAttempt,
		PeerID:  "s-a",
		State:   domain.ConnectionState{Status: webrtc.PeerConnectionStateFailed},
		Attempt: 1,
	})

	var got []Message
	for len(got) < 2 {
		select {
		case msg := <-ch:
			var m Message
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &m))
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %d messages", len(got))
		}
	}

	assert.Equal(t, "rooms", got[0].Source)
	assert.Equal(t, "participant-joined", got[0].Kind)
	assert.Equal(t, domain.RoomID("r1"), got[0].RoomID)
	require.NotNil(t, got[0].Participant)
	assert.Equal(t, domain.UserID("alice"), got[0].Participant.UserID)

	assert.Equal(t, "connstate", got[1].Source)
	assert.Equal(t, "reconnect-attempt", got[1].Kind)
	assert.Equal(t, "failed", got[1].Status)
	assert.Equal(t, 1, got[1].Attempt)
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	p := &Publisher{client: client, channel: "c", queue: make(chan Message, 1), now: time.Now, done: make(chan struct{})}
	p.OnRoomEvent(rooms.Event{Kind: rooms.RoomCreated, RoomID: "r1"})
	p.OnRoomEvent(rooms.Event{Kind: rooms.RoomClosed, RoomID: "r1"})
	assert.Len(t, p.queue, 1)

	go p.loop()
	p.Close()
}

func TestPublisher_EventsAfterCloseAreDropped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	coord := rooms.NewCoordinator(domain.DefaultRoomSettings())
	tracker := connstate.NewTracker()
	p := NewPublisher(client, "signalroom.events", 8)
	coord.Subscribe(p.OnRoomEvent)
	tracker.Subscribe(p.OnConnEvent)

	ctx := context.Background()
	_, err := coord.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)
	require.NoError(t, coord.AddParticipant(ctx, "r1", domain.Participant{SessionID: "s1", UserID: "alice"}))
	tracker.InitializeState("s1")
	tracker.UpdateState("s1", connstate.Update{})

	coord.Shutdown(ctx)
	tracker.Close()
	p.Close()

	// a read pump finishing its disconnect after shutdown
	assert.NotPanics(t, func() {
		require.NoError(t, coord.RemoveParticipant(ctx, "r1", "s1"))
		tracker.RemoveState("s1")
		p.OnRoomEvent(rooms.Event{Kind: rooms.RoomClosed, RoomID: "r1"})
	})
	assert.NotPanics(t, p.Close)
}
