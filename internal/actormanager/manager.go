// Package actormanager implements the process-wide Actor registry: a
// single map of active actors, guarded by one mutex, and the glue that
// subscribes each actor's topic channel on the shared event bus. Every
// actor is single-threaded internally (actorstate/engine own no locks);
// ActorManager is the only place that needs one.
package actormanager

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/bus"
)

// dispatchableEvents is the closed set of event types an actor's mailbox
// cares about; everything else on a topic channel is ignored by the
// manager (agent_stream_chunk and friends are consumed by SSE listeners,
// not actors).
var dispatchableEvents = map[string]bool{
	"new_message":                 true,
	"topic_updated":               true,
	"topic_participants_updated":  true,
	"agent_joined":                true,
	"participant_left":            true,
	"messages_rolled_back":        true,
}

// Actor is the subset of the actor engine's surface the manager needs to
// drive: event delivery and lifecycle/status introspection.
type Actor struct {
	AgentID string

	// OnEvent delivers one bus event for topicID to the actor's mailbox.
	// Implementations must not block the manager's dispatch goroutine;
	// typically this is a non-blocking channel send.
	OnEvent func(topicID string, ev bus.Event)

	// Stop tears the actor down.
	Stop func()

	// IsRunning and TopicID back get_pool_status-equivalent introspection.
	IsRunning func() bool
	TopicID   func() string
	Status    func() map[string]any
}

// Manager is the process-wide Actor registry and dispatch hub.
type Manager struct {
	bus    bus.Bus
	logger *slog.Logger

	mu              sync.Mutex
	actors          map[string]*Actor
	channelToAgents map[string]map[string]bool
	unsubscribeFns  map[string]func()
	lastActive      map[string]time.Time
}

// New constructs a Manager bound to b, the shared event bus.
func New(b bus.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		bus:             b,
		logger:          logger,
		actors:          make(map[string]*Actor),
		channelToAgents: make(map[string]map[string]bool),
		unsubscribeFns:  make(map[string]func()),
		lastActive:      make(map[string]time.Time),
	}
}

// Register adds actor to the registry. Callers typically call this once,
// from get_or_create_actor-equivalent actor-factory code, before calling
// SubscribeForAgent.
func (m *Manager) Register(actor *Actor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors[actor.AgentID] = actor
	m.lastActive[actor.AgentID] = time.Now()
	m.logger.Info("actormanager: registered actor", "agent_id", actor.AgentID)
}

// GetActor returns the registered actor for agentID, or nil.
func (m *Manager) GetActor(agentID string) *Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actors[agentID]
}

// RemoveActor stops and unregisters agentID.
func (m *Manager) RemoveActor(agentID string) {
	m.mu.Lock()
	actor, ok := m.actors[agentID]
	if ok {
		delete(m.actors, agentID)
		delete(m.lastActive, agentID)
	}
	m.mu.Unlock()
	if ok && actor.Stop != nil {
		actor.Stop()
		m.logger.Info("actormanager: removed actor", "agent_id", agentID)
	}
}

// SubscribeForAgent subscribes actor to topicID's channel. The
// subscription is channel-shared on the underlying bus: the manager keeps
// its own per-channel agent roster so a second agent sharing a topic
// reuses the same bus subscription.
func (m *Manager) SubscribeForAgent(actor *Actor, topicID string) error {
	channel := bus.ChannelName(topicID)

	m.mu.Lock()
	agents, exists := m.channelToAgents[channel]
	if !exists {
		agents = make(map[string]bool)
		m.channelToAgents[channel] = agents
	}
	alreadySubscribed := agents[actor.AgentID]
	agents[actor.AgentID] = true
	m.mu.Unlock()

	if alreadySubscribed {
		return nil
	}

	unsubscribe, err := m.bus.Subscribe(topicID, actor.AgentID, func(ev bus.Event) {
		if !dispatchableEvents[ev.Type] {
			return
		}
		m.dispatch(channel, topicID, ev)
	})
	if err != nil {
		return fmt.Errorf("actormanager: subscribe agent %s to %s: %w", actor.AgentID, channel, err)
	}

	m.mu.Lock()
	m.unsubscribeFns[channel+"|"+actor.AgentID] = unsubscribe
	m.mu.Unlock()

	m.logger.Info("actormanager: subscribed", "agent_id", actor.AgentID, "channel", channel)
	return nil
}

// UnsubscribeForAgent removes actor from topicID's roster, tearing down
// the underlying bus subscription once it is the last listener.
func (m *Manager) UnsubscribeForAgent(actor *Actor, topicID string) {
	channel := bus.ChannelName(topicID)
	key := channel + "|" + actor.AgentID

	m.mu.Lock()
	if agents, ok := m.channelToAgents[channel]; ok {
		delete(agents, actor.AgentID)
		if len(agents) == 0 {
			delete(m.channelToAgents, channel)
		}
	}
	unsubscribe := m.unsubscribeFns[key]
	delete(m.unsubscribeFns, key)
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// dispatch delivers ev to every agent currently subscribed to channel.
// dispatch is called from the bus's own subscriber goroutine (one per
// listener registration); each actor's OnEvent must be non-blocking.
func (m *Manager) dispatch(channel, topicID string, ev bus.Event) {
	m.mu.Lock()
	agentIDs := make([]string, 0, len(m.channelToAgents[channel]))
	for id := range m.channelToAgents[channel] {
		agentIDs = append(agentIDs, id)
	}
	m.mu.Unlock()

	if len(agentIDs) > 0 {
		m.logger.Debug("actormanager: dispatching", "type", ev.Type, "channel", channel, "agents", len(agentIDs))
	}

	for _, agentID := range agentIDs {
		m.mu.Lock()
		actor := m.actors[agentID]
		if actor != nil {
			m.lastActive[agentID] = time.Now()
		}
		m.mu.Unlock()
		if actor != nil && actor.OnEvent != nil {
			actor.OnEvent(topicID, ev)
		}
	}
}

// IdleSince reports how long agentID has gone without a dispatched event.
// It returns false if agentID is not registered.
func (m *Manager) IdleSince(agentID string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastActive[agentID]
	if !ok {
		return 0, false
	}
	return time.Since(last), true
}

// SweepIdle stops and unregisters every actor whose last dispatched event
// is older than ttl. It returns the agent ids removed.
func (m *Manager) SweepIdle(ttl time.Duration) []string {
	m.mu.Lock()
	var stale []string
	now := time.Now()
	for agentID, last := range m.lastActive {
		if now.Sub(last) >= ttl {
			stale = append(stale, agentID)
		}
	}
	m.mu.Unlock()

	for _, agentID := range stale {
		m.RemoveActor(agentID)
	}
	return stale
}

// ActiveAgents returns a snapshot of every registered actor keyed by
// agent id.
func (m *Manager) ActiveAgents() map[string]*Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Actor, len(m.actors))
	for k, v := range m.actors {
		out[k] = v
	}
	return out
}

// PoolStatus returns the status of every actor that is currently running
// and bound to a topic, for monitoring dashboards.
func (m *Manager) PoolStatus() []map[string]any {
	m.mu.Lock()
	actors := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.mu.Unlock()

	var out []map[string]any
	for _, actor := range actors {
		if actor.IsRunning == nil || !actor.IsRunning() {
			continue
		}
		if actor.TopicID == nil || actor.TopicID() == "" {
			continue
		}
		if actor.Status == nil {
			continue
		}
		out = append(out, actor.Status())
	}
	return out
}

// Shutdown stops every registered actor and clears the registry.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	actors := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.actors = make(map[string]*Actor)
	m.channelToAgents = make(map[string]map[string]bool)
	fns := m.unsubscribeFns
	m.unsubscribeFns = make(map[string]func())
	m.mu.Unlock()

	for _, unsubscribe := range fns {
		unsubscribe()
	}
	for _, actor := range actors {
		if actor.Stop != nil {
			actor.Stop()
		}
	}
	m.logger.Info("actormanager: shutdown complete")
}
