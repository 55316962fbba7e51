package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/bus"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// upgrader mirrors the teacher's control-plane websocket settings; origin
// checking is left permissive here since the event stream carries no
// control-plane commands, only a one-way forward of published events.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// apiServer exposes the message-ingest endpoint, the live topic-event
// websocket stream, and the Prometheus /metrics endpoint over plain
// net/http using Go 1.22's ServeMux path patterns.
type apiServer struct {
	rt     *runtime
	logger *slog.Logger
	srv    *http.Server
}

func newAPIServer(rt *runtime, addr string, logger *slog.Logger) *apiServer {
	a := &apiServer{rt: rt, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /topics/{topicID}/messages", a.handlePostMessage)
	mux.HandleFunc("GET /topics/{topicID}/events", a.handleEventStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", a.handleHealthz)

	a.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

func (a *apiServer) Start() error {
	ln := a.srv.Addr
	a.logger.Info("api: listening", "addr", ln)
	err := a.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *apiServer) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}

type postMessageRequest struct {
	SenderID   string   `json:"sender_id"`
	SenderType string   `json:"sender_type"`
	Content    string   `json:"content"`
	Mentions   []string `json:"mentions,omitempty"`
}

// handlePostMessage activates every configured agent against the topic
// (an unseen topic ID resolves through the directory's default-session
// fallback; nothing is registered), then persists and
// publishes the inbound message. Actors already subscribed receive the
// event through actormanager's dispatch loop; nothing further is needed
// here to trigger a response.
func (a *apiServer) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	topicID := r.PathValue("topicID")
	if topicID == "" {
		http.Error(w, "topicID is required", http.StatusBadRequest)
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := a.rt.activateAll(ctx, topicID); err != nil {
		a.logger.Error("api: activate agents failed", "topic_id", topicID, "error", err)
		http.Error(w, "failed to activate agents", http.StatusInternalServerError)
		return
	}

	senderType := models.SenderType(req.SenderType)
	if senderType == "" {
		senderType = models.SenderUser
	}

	msg := models.Message{
		MessageID:  uuid.NewString(),
		TopicID:    topicID,
		SenderID:   req.SenderID,
		SenderType: senderType,
		Role:       models.RoleUser,
		Content:    req.Content,
		Mentions:   req.Mentions,
		CreatedAt:  time.Now(),
	}

	stored, err := a.rt.topicSvc.SendMessage(ctx, msg)
	if err != nil {
		a.logger.Error("api: send message failed", "topic_id", topicID, "error", err)
		http.Error(w, "failed to send message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(stored)
}

// handleEventStream upgrades to a websocket and forwards every bus.Event
// published on topicID's channel until the client disconnects.
func (a *apiServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	topicID := r.PathValue("topicID")
	if topicID == "" {
		http.Error(w, "topicID is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("api: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan bus.Event, 64)
	listenerID := uuid.NewString()
	unsubscribe, err := a.rt.bus.Subscribe(topicID, listenerID, func(ev bus.Event) {
		select {
		case events <- ev:
		default:
			a.logger.Warn("api: dropping event, slow websocket reader", "topic_id", topicID)
		}
	})
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		return
	}
	defer unsubscribe()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	// Drain client-initiated close/control frames in the background; this
	// stream is one-way so any data frame from the client is ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (a *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
