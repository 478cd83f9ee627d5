package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const subscriberBuffer = 64

// Publisher is the publishing side of the bus.
type Publisher interface {
	Publish(e Event) error
}

// Bus is an in-process pub/sub for events.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewBus creates an in-process bus. Messages published while no one is
// subscribed to their topic are discarded.
func NewBus(logger zerolog.Logger) *Bus {
	logger = logger.With().Str("component", "events").Logger()
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            subscriberBuffer,
		BlockPublishUntilSubscriberAck: true,
	}, newLoggerAdapter(logger))

	return &Bus{pubsub: pubsub, logger: logger}
}

// Publish encodes and publishes an event on its topic, filling in the ID and
// time when unset.
func (b *Bus) Publish(e Event) error {
	if e.Topic == "" {
		return fmt.Errorf("publish event: missing topic")
	}
	if e.ID == "" {
		e.ID = watermill.NewUUID()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Topic, err)
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return fmt.Errorf("publish %s: bus closed", e.Topic)
	}

	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set("topic", e.Topic)
	if err := b.pubsub.Publish(e.Topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Topic, err)
	}

	b.logger.Debug().Str("topic", e.Topic).Int64("spool_id", e.SpoolID).Msg("event published")
	return nil
}

// Subscribe returns a channel receiving the events of the given topics until
// ctx is done. Events are dropped for a subscriber that falls too far behind.
func (b *Bus) Subscribe(ctx context.Context, topics ...string) (<-chan Event, error) {
	if len(topics) == 0 {
		topics = AllTopics
	}

	out := make(chan Event, subscriberBuffer)
	var wg sync.WaitGroup
	for _, topic := range topics {
		messages, err := b.pubsub.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", topic, err)
		}
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			b.forward(ctx, topic, messages, out)
		}(topic)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (b *Bus) forward(ctx context.Context, topic string, messages <-chan *message.Message, out chan<- Event) {
	for msg := range messages {
		var e Event
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			b.logger.Warn().Err(err).Str("topic", topic).Msg("dropping undecodable event")
			msg.Ack()
			continue
		}

		// Ack only once the event is queued so publication order is kept
		// across topics.
		select {
		case out <- e:
		case <-ctx.Done():
			msg.Ack()
			return
		default:
			b.logger.Warn().Str("topic", topic).Msg("subscriber is behind, dropping event")
		}
		msg.Ack()
	}
}

// Close shuts the bus down; subscription channels are closed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
