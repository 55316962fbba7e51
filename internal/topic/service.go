// Package topic implements the Topic Service: the single write path for
// topic messages and the sole publisher onto the event bus. Every other
// component reaches Redis and the message store only through this
// package.
package topic

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/bus"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/messagestore"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// The closed set of event types the core emits and consumes.
const (
	EventNewMessage               = "new_message"
	EventTopicUpdated             = "topic_updated"
	EventTopicParticipantsUpdated = "topic_participants_updated"
	EventAgentJoined              = "agent_joined"
	EventParticipantLeft          = "participant_left"
	EventMessagesRolledBack       = "messages_rolled_back"
	EventAgentThinking            = "agent_thinking"
	EventAgentStreamChunk         = "agent_stream_chunk"
	EventAgentStreamDone          = "agent_stream_done"
	EventAgentSilent              = "agent_silent"
	EventExecutionLog             = "execution_log"
	EventReaction                 = "reaction"
	EventTopicProcessEvent        = "topic_process_event"
	EventActionChainProgress      = "action_chain_progress"
)

// ProcessEventPhase is the lifecycle phase annotation carried on a
// topic_process_event payload.
type ProcessEventPhase string

const (
	PhaseStarted   ProcessEventPhase = "started"
	PhaseUpdated   ProcessEventPhase = "updated"
	PhaseCompleted ProcessEventPhase = "completed"
	PhaseError     ProcessEventPhase = "error"
)

func interruptKey(topicID, agentID string) string {
	return fmt.Sprintf("topic_interrupt:%s:%s", topicID, agentID)
}

// TopicDirectory resolves topic metadata (session type, ext, participants).
// Implementations typically wrap a small cache in front of the primary
// database.
type TopicDirectory interface {
	GetTopic(ctx context.Context, topicID string) (models.Topic, bool, error)
}

// Service is the Topic Service: it persists messages, publishes every
// bus event, and owns the short-lived interrupt flags used for
// mid-conversation cancellation.
type Service struct {
	bus       bus.Bus
	store     messagestore.Store
	directory TopicDirectory
	redis     *redis.Client

	interruptTTL time.Duration
}

// New builds a Topic Service. redisClient is used only for the interrupt
// flag (a short-lived SET/GET/DEL), separate from the bus's own
// connection so the two can be scaled or failed over independently.
func New(b bus.Bus, store messagestore.Store, directory TopicDirectory, redisClient *redis.Client) *Service {
	return &Service{
		bus:          b,
		store:        store,
		directory:    directory,
		redis:        redisClient,
		interruptTTL: 30 * time.Second,
	}
}

// PublishEvent publishes eventType with payload on topicID's channel
// without persisting anything.
func (s *Service) PublishEvent(ctx context.Context, topicID, eventType string, payload map[string]any) error {
	return s.bus.Publish(ctx, topicID, bus.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      payload,
	})
}

// SendMessage persists msg via the message store, then publishes
// new_message on topicID's channel. It is the only operation that both
// writes and publishes.
func (s *Service) SendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	stored, err := s.store.SendMessage(ctx, msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("topic: send message: %w", err)
	}
	if err := s.PublishEvent(ctx, msg.TopicID, EventNewMessage, map[string]any{"data": stored}); err != nil {
		return stored, fmt.Errorf("topic: publish new_message: %w", err)
	}
	return stored, nil
}

// GetTopic resolves topicID's metadata via the configured directory.
func (s *Service) GetTopic(ctx context.Context, topicID string) (models.Topic, bool, error) {
	return s.directory.GetTopic(ctx, topicID)
}

// CheckInterrupt reports whether a stop request is pending for
// (topicID, agentID), reading a short-lived Redis key.
func (s *Service) CheckInterrupt(ctx context.Context, topicID, agentID string) (bool, error) {
	n, err := s.redis.Exists(ctx, interruptKey(topicID, agentID)).Result()
	if err != nil {
		return false, fmt.Errorf("topic: check interrupt: %w", err)
	}
	return n > 0, nil
}

// RequestInterrupt sets the interrupt flag for (topicID, agentID), picked
// up by that agent at its next ReAct turn boundary.
func (s *Service) RequestInterrupt(ctx context.Context, topicID, agentID string) error {
	if err := s.redis.Set(ctx, interruptKey(topicID, agentID), "1", s.interruptTTL).Err(); err != nil {
		return fmt.Errorf("topic: request interrupt: %w", err)
	}
	return nil
}

// ClearInterrupt removes the interrupt flag for (topicID, agentID).
func (s *Service) ClearInterrupt(ctx context.Context, topicID, agentID string) error {
	if err := s.redis.Del(ctx, interruptKey(topicID, agentID)).Err(); err != nil {
		return fmt.Errorf("topic: clear interrupt: %w", err)
	}
	return nil
}

// PublishProcessEvent publishes a topic_process_event describing one node
// in an agent's agent_mind trace.
func (s *Service) PublishProcessEvent(ctx context.Context, topicID, agentID string, phase ProcessEventPhase, step map[string]any) error {
	payload := map[string]any{
		"agent_id": agentID,
		"phase":    phase,
		"step":     step,
	}
	return s.PublishEvent(ctx, topicID, EventTopicProcessEvent, payload)
}

// PublishActionChainProgress publishes action_chain_progress describing
// the current index within an in-flight ActionChain hand-off.
func (s *Service) PublishActionChainProgress(ctx context.Context, topicID, chainID string, currentIndex, total int) error {
	payload := map[string]any{
		"chain_id":      chainID,
		"current_index": currentIndex,
		"total":         total,
	}
	return s.PublishEvent(ctx, topicID, EventActionChainProgress, payload)
}

// GetMessagesPaginated delegates to the message store.
func (s *Service) GetMessagesPaginated(ctx context.Context, topicID string, limit int, beforeID string) ([]models.Message, bool, string, error) {
	return s.store.GetMessagesPaginated(ctx, topicID, limit, beforeID)
}

// DeleteAfter removes every message after targetID and publishes
// messages_rolled_back so clients drop the truncated tail from their view.
func (s *Service) DeleteAfter(ctx context.Context, topicID, targetID string) error {
	if err := s.store.DeleteAfter(ctx, topicID, targetID); err != nil {
		return fmt.Errorf("topic: delete after: %w", err)
	}
	return s.PublishEvent(ctx, topicID, EventMessagesRolledBack, map[string]any{"after": targetID})
}
