package topic

import (
	"context"
	"testing"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

func TestStaticDirectoryReturnsSeededTopic(t *testing.T) {
	d := NewStaticDirectory([]models.Topic{
		{TopicID: "t1", SessionType: models.SessionPrivateChat},
	}, "")

	tp, ok, err := d.GetTopic(context.Background(), "t1")
	if err != nil || !ok {
		t.Fatalf("expected seeded topic to be found, err=%v ok=%v", err, ok)
	}
	if tp.SessionType != models.SessionPrivateChat {
		t.Errorf("expected private_chat, got %q", tp.SessionType)
	}
}

func TestStaticDirectoryFallsBackToDefaultSession(t *testing.T) {
	d := NewStaticDirectory(nil, models.SessionAgent)

	tp, ok, err := d.GetTopic(context.Background(), "unknown")
	if err != nil || !ok {
		t.Fatalf("expected a synthesized topic, err=%v ok=%v", err, ok)
	}
	if tp.SessionType != models.SessionAgent {
		t.Errorf("expected default session type agent, got %q", tp.SessionType)
	}
	if tp.TopicID != "unknown" {
		t.Errorf("expected topic id to be preserved, got %q", tp.TopicID)
	}
}

func TestStaticDirectoryRegisterAndRemove(t *testing.T) {
	d := NewStaticDirectory(nil, models.SessionTopicGeneral)
	d.Register(models.Topic{TopicID: "t2", SessionType: models.SessionPrivateChat})

	if tp, ok, _ := d.GetTopic(context.Background(), "t2"); !ok || tp.SessionType != models.SessionPrivateChat {
		t.Fatalf("expected registered topic, got %+v ok=%v", tp, ok)
	}

	d.Remove("t2")
	tp, _, _ := d.GetTopic(context.Background(), "t2")
	if tp.SessionType != models.SessionTopicGeneral {
		t.Errorf("expected removed topic to fall back to default session type, got %q", tp.SessionType)
	}
}
