// Package events publishes room and connection lifecycle events to a Redis
// channel so other services can follow what the signaling core does.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/app/connstate"
	"github.com/dkeye/signalroom/internal/app/rooms"
	"github.com/dkeye/signalroom/internal/domain"
)

const (
	DefaultBuffer  = 256
	publishTimeout = 2 * time.Second
)

// Message is the JSON document put on the channel.
type Message struct {
	Source      string              `json:"source"`
	Kind        string              `json:"kind"`
	RoomID      domain.RoomID       `json:"roomId,omitempty"`
	PeerID      domain.SessionID    `json:"peerId,omitempty"`
	Participant *domain.Participant `json:"participant,omitempty"`
	Status      string              `json:"status,omitempty"`
	Attempt     int                 `json:"attempt,omitempty"`
	At          time.Time           `json:"at"`
}

// Publisher never blocks the caller: messages go through a bounded queue
// and are dropped with a warning when Redis falls behind.
type Publisher struct {
	client  *redis.Client
	channel string
	queue   chan Message
	now     func() time.Time

	// mu guards closed against concurrent enqueue; sends hold the read side.
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewPublisher(client *redis.Client, channel string, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	p := &Publisher{
		client:  client,
		channel: channel,
		queue:   make(chan Message, buffer),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Publisher) loop() {
	defer close(p.done)
	for m := range p.queue {
		b, err := json.Marshal(m)
		if err != nil {
			log.Error().Err(err).Str("module", "events").Msg("marshal event")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = p.client.Publish(ctx, p.channel, b).Err()
		cancel()
		if err != nil {
			log.Error().Err(err).Str("module", "events").Str("channel", p.channel).Str("kind", m.Kind).Msg("publish event")
		}
	}
}

func (p *Publisher) enqueue(m Message) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Debug().Str("module", "events").Str("kind", m.Kind).Msg("publisher closed, event dropped")
		return
	}
	select {
	case p.queue <- m:
	default:
		log.Warn().Str("module", "events").Str("kind", m.Kind).Msg("event queue full, dropped")
	}
}

// OnRoomEvent is a rooms.Listener.
func (p *Publisher) OnRoomEvent(e rooms.Event) {
	p.enqueue(Message{
		Source:      "rooms",
		Kind:        string(e.Kind),
		RoomID:      e.RoomID,
		Participant: e.Participant,
		At:          e.At,
	})
}

// OnConnEvent is a connstate.Listener. Plain state changes are frequent
// and only the lifecycle ones are forwarded.
func (p *Publisher) OnConnEvent(e connstate.Event) {
	if e.Kind == connstate.StateChange {
		return
	}
	m := Message{
		Source:  "connstate",
		Kind:    string(e.Kind),
		PeerID:  e.PeerID,
		Attempt: e.Attempt,
		At:      p.now(),
	}
	if e.Kind != connstate.StateRemoved {
		m.Status = e.State.Status.String()
	}
	p.enqueue(m)
}

// Close drains the queue and waits for the worker. Events arriving after
// Close are dropped, so sources may still be emitting during shutdown.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
