package topic

import (
	"context"
	"sync"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// StaticDirectory is a TopicDirectory backed by an in-memory map rather
// than a database. cmd/nexusactor constructs it with no seeded topics
// (config.Config has no topic list), so every topic it serves resolves
// through the default-session fallback in GetTopic.
type StaticDirectory struct {
	mu             sync.RWMutex
	topics         map[string]models.Topic
	defaultSession models.SessionType
}

// NewStaticDirectory builds a directory pre-populated with topics.
// defaultSession is used for GetTopic calls against an id that was never
// registered, so an actor activated against an ad-hoc topic id still gets
// a usable Topic instead of an error.
func NewStaticDirectory(topics []models.Topic, defaultSession models.SessionType) *StaticDirectory {
	if defaultSession == "" {
		defaultSession = models.SessionTopicGeneral
	}
	d := &StaticDirectory{
		topics:         make(map[string]models.Topic, len(topics)),
		defaultSession: defaultSession,
	}
	for _, t := range topics {
		d.topics[t.TopicID] = t
	}
	return d
}

// GetTopic implements TopicDirectory.
func (d *StaticDirectory) GetTopic(_ context.Context, topicID string) (models.Topic, bool, error) {
	d.mu.RLock()
	t, ok := d.topics[topicID]
	d.mu.RUnlock()
	if ok {
		return t, true, nil
	}
	return models.Topic{TopicID: topicID, SessionType: d.defaultSession}, true, nil
}

// Register adds or replaces topicID's metadata, for topics created after
// startup (e.g. a new private chat between an agent and a human).
func (d *StaticDirectory) Register(t models.Topic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.topics[t.TopicID] = t
}

// Remove drops topicID from the directory; a later GetTopic falls back to
// the default session type again.
func (d *StaticDirectory) Remove(topicID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.topics, topicID)
}
