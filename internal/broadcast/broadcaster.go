package broadcast

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/rickgao/stockfeed/internal/metrics"
	"github.com/rickgao/stockfeed/internal/model"
	"github.com/rickgao/stockfeed/internal/protocol"
)

// SharedTopic is the topic every connection joins in broadcast mode.
const SharedTopic = "stocks"

// Mode selects how refresh results are published.
type Mode string

const (
	// ModeInteractive publishes one update per symbol to that symbol's topic.
	ModeInteractive Mode = "interactive"
	// ModeBroadcast publishes the full snapshot to SharedTopic every cycle.
	ModeBroadcast Mode = "broadcast"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeInteractive, ModeBroadcast:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (want %q or %q)", s, ModeInteractive, ModeBroadcast)
	}
}

// Subscriber is one live connection.
type Subscriber interface {
	// ID uniquely identifies the connection.
	ID() string

	// Send queues msg for delivery without blocking. It returns false if the
	// message was dropped.
	Send(msg []byte) bool
}

// Broadcaster owns the connection<->topic edges.
type Broadcaster struct {
	mode    Mode
	metrics *metrics.Metrics

	mu      sync.RWMutex
	topics  map[string]map[string]Subscriber // topic -> conn ID -> subscriber
	members map[string]map[string]struct{}   // conn ID -> topics
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithMetrics records delivered message counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broadcaster) {
		b.metrics = m
	}
}

// New creates an empty registry.
func New(mode Mode, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		mode:    mode,
		topics:  make(map[string]map[string]Subscriber),
		members: make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mode returns the publishing mode.
func (b *Broadcaster) Mode() Mode {
	return b.mode
}

// Join registers a connection. In broadcast mode it is also subscribed to
// SharedTopic.
func (b *Broadcaster) Join(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.members[s.ID()]; !ok {
		b.members[s.ID()] = make(map[string]struct{})
	}
	if b.mode == ModeBroadcast {
		b.subscribeLocked(s, SharedTopic)
	}
}

// Subscribe adds s to topic. It returns false if s was already a member.
func (b *Broadcaster) Subscribe(s Subscriber, topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribeLocked(s, topic)
}

func (b *Broadcaster) subscribeLocked(s Subscriber, topic string) bool {
	id := s.ID()

	joined, ok := b.members[id]
	if !ok {
		joined = make(map[string]struct{})
		b.members[id] = joined
	}
	if _, ok := joined[topic]; ok {
		return false
	}
	joined[topic] = struct{}{}

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[string]Subscriber)
		b.topics[topic] = subs
	}
	subs[id] = s
	return true
}

// Unsubscribe removes s from topic. It returns false if s was not a member.
func (b *Broadcaster) Unsubscribe(s Subscriber, topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := s.ID()
	joined, ok := b.members[id]
	if !ok {
		return false
	}
	if _, ok := joined[topic]; !ok {
		return false
	}
	delete(joined, topic)
	b.removeFromTopicLocked(topic, id)
	return true
}

// Leave drops every subscription held by s.
func (b *Broadcaster) Leave(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := s.ID()
	for topic := range b.members[id] {
		b.removeFromTopicLocked(topic, id)
	}
	delete(b.members, id)
}

func (b *Broadcaster) removeFromTopicLocked(topic, id string) {
	subs := b.topics[topic]
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers msg to every current member of topic and returns how many
// accepted it.
func (b *Broadcaster) Publish(topic string, msg []byte) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, s := range b.topics[topic] {
		if s.Send(msg) {
			delivered++
		}
	}
	return delivered
}

// PublishCycle publishes the snapshots written by one refresh cycle. In
// interactive mode each snapshot goes to its own symbol topic; in broadcast
// mode the whole slice becomes one {"stocks":{...}} message.
func (b *Broadcaster) PublishCycle(written []model.StockSnapshot) int {
	delivered := 0

	switch b.mode {
	case ModeBroadcast:
		delivered = b.Publish(SharedTopic, protocol.Stocks(written))
		b.metrics.Published(string(ModeBroadcast), delivered)
	default:
		for _, s := range written {
			if b.SubscriberCount(s.Symbol) == 0 {
				continue
			}
			delivered += b.Publish(s.Symbol, protocol.Update(s))
		}
		b.metrics.Published(string(ModeInteractive), delivered)
	}

	return delivered
}

// Topics returns the sorted topics s belongs to.
func (b *Broadcaster) Topics(s Subscriber) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.members[s.ID()]))
}

// SubscriberCount returns the number of members of topic.
func (b *Broadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// ConnectionCount returns the number of joined connections.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.members)
}
