// Package bus implements the Redis Pub/Sub fan-out adapter: every topic is
// a channel named "topic:<id>"; a single long-lived subscriber goroutine
// per process multiplexes all deliveries and dispatches them to listeners
// registered per channel. The subscriber self-heals: it tolerates socket
// read timeouts and rebuilds the subscription after any other error.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is a JSON payload published on a topic channel. Every event carries
// at least Type and Timestamp; the remaining fields are event-type
// specific and stored in Data.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"-"`
}

// MarshalJSON flattens Data alongside Type/Timestamp so consumers see one
// flat object, matching the wire shape described by the event table.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+2)
	for k, v := range e.Data {
		out[k] = v
	}
	out["type"] = e.Type
	out["timestamp"] = e.Timestamp
	return json.Marshal(out)
}

// UnmarshalJSON reconstructs Event from a flat object, pulling Type and
// Timestamp out of Data.
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if t, ok := raw["type"].(string); ok {
		e.Type = t
	}
	delete(raw, "type")
	if ts, ok := raw["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = parsed
		}
	}
	delete(raw, "timestamp")
	e.Data = raw
	return nil
}

// ChannelName returns the Redis Pub/Sub channel a topic publishes on.
func ChannelName(topicID string) string {
	return "topic:" + topicID
}

// Bus is the minimal publish/subscribe contract the rest of the core
// depends on.
type Bus interface {
	// Publish sends ev on the channel for topicID.
	Publish(ctx context.Context, topicID string, ev Event) error
	// Subscribe registers a listener for topicID's channel, sharing the
	// underlying Redis subscription with any other listener already
	// registered on the same channel. The returned func unsubscribes this
	// listener only; the channel subscription itself is torn down once its
	// last listener unsubscribes.
	Subscribe(topicID string, listenerID string, handler func(Event)) (unsubscribe func(), err error)
	// Close stops the subscriber goroutine and closes the Redis client.
	Close() error
}

type channelState struct {
	listeners map[string]func(Event)
}

// RedisBus is the production Bus implementation: one dedicated subscriber
// goroutine drains redis.PubSub.Channel() for the current channel set and
// fans events out to registered listeners.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*channelState
	pubsub   *redis.PubSub

	resubscribe chan struct{}
	closed      chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// Config configures a RedisBus.
type Config struct {
	Addr            string
	Password        string
	DB              int
	Logger          *slog.Logger
	ReadTimeout     time.Duration // subscriber read deadline, default 1s
	ReconnectJitter time.Duration
}

// NewRedisBus dials Redis, validates the connection with PING, and starts
// the self-healing subscriber goroutine.
func NewRedisBus(ctx context.Context, cfg Config) (*RedisBus, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bus: redis ping failed: %w", err)
	}
	b := &RedisBus{
		client:      client,
		logger:      cfg.Logger,
		channels:    make(map[string]*channelState),
		resubscribe: make(chan struct{}, 1),
		closed:      make(chan struct{}),
	}
	b.pubsub = client.Subscribe(ctx) // no channels yet
	b.wg.Add(1)
	go b.loop(cfg.ReadTimeout)
	return b, nil
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, topicID string, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("bus: marshal event: %w", err)
	}
	return b.client.Publish(ctx, ChannelName(topicID), data).Err()
}

// Subscribe implements Bus. Subscription is channel-shared: the first
// listener on a channel issues the Redis SUBSCRIBE; later listeners reuse
// it; unsubscribe only issues UNSUBSCRIBE once the channel's listener map
// is empty.
func (b *RedisBus) Subscribe(topicID, listenerID string, handler func(Event)) (func(), error) {
	channel := ChannelName(topicID)
	b.mu.Lock()
	state, exists := b.channels[channel]
	if !exists {
		state = &channelState{listeners: make(map[string]func(Event))}
		b.channels[channel] = state
	}
	state.listeners[listenerID] = handler
	b.mu.Unlock()

	if !exists {
		b.requestResubscribe()
	}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		st, ok := b.channels[channel]
		if !ok {
			return
		}
		delete(st.listeners, listenerID)
		if len(st.listeners) == 0 {
			delete(b.channels, channel)
			b.requestResubscribeLocked()
		}
	}
	return unsubscribe, nil
}

func (b *RedisBus) requestResubscribe() {
	select {
	case b.resubscribe <- struct{}{}:
	default:
	}
}

func (b *RedisBus) requestResubscribeLocked() {
	select {
	case b.resubscribe <- struct{}{}:
	default:
	}
}

func (b *RedisBus) currentChannels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	return names
}

// loop is the single long-lived subscriber goroutine. It self-heals: a
// socket read timeout is expected and ignored; any other error rebuilds
// the pubsub client and resubscribes the current channel set.
func (b *RedisBus) loop(readTimeout time.Duration) {
	defer b.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-b.closed:
			return
		case <-b.resubscribe:
			b.resubscribeAll(ctx)
			continue
		default:
		}

		msgCtx, cancel := context.WithTimeout(ctx, readTimeout)
		msg, err := b.pubsub.ReceiveMessage(msgCtx)
		cancel()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, redis.ErrClosed) {
				select {
				case <-b.closed:
					return
				default:
				}
			}
			b.logger.Warn("bus: subscriber error, rebuilding", "error", err)
			b.rebuild(ctx)
			continue
		}
		b.dispatch(msg)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (b *RedisBus) dispatch(msg *redis.Message) {
	var ev Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		b.logger.Warn("bus: failed to decode event", "error", err, "channel", msg.Channel)
		return
	}
	b.mu.Lock()
	state, ok := b.channels[msg.Channel]
	var handlers []func(Event)
	if ok {
		handlers = make([]func(Event), 0, len(state.listeners))
		for _, h := range state.listeners {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// rebuild closes the current pubsub client and re-creates it, then
// resubscribes to every channel currently registered. No messages are
// consumed during the rebuild window; Redis is at-most-once so callers
// must tolerate the gap.
func (b *RedisBus) rebuild(ctx context.Context) {
	_ = b.pubsub.Close()
	b.pubsub = b.client.Subscribe(ctx)
	b.resubscribeAll(ctx)
}

func (b *RedisBus) resubscribeAll(ctx context.Context) {
	channels := b.currentChannels()
	if len(channels) == 0 {
		return
	}
	if err := b.pubsub.Subscribe(ctx, channels...); err != nil {
		b.logger.Error("bus: resubscribe failed", "error", err, "channels", channels)
	}
}

// Close implements Bus.
func (b *RedisBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
	_ = b.pubsub.Close()
	b.wg.Wait()
	return b.client.Close()
}
