package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"reading-adventure-service/internal/app"

	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.ReadingService
	profiles *ProfileResolver
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ReadingService, profiles *ProfileResolver) *WSHandler {
	return &WSHandler{
		service:  service,
		profiles: profiles,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type paragraphPayload struct {
	Paragraph int `json:"paragraph"`
}

type selectPayload struct {
	Paragraph int `json:"paragraph"`
	Question  int `json:"question"`
	Option    int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into one story session.
// The profile cookie must own the session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	profileID, ok := h.profiles.Lookup(r)
	if sessionID == "" || !ok {
		http.Error(w, "missing sessionId or profile cookie", http.StatusBadRequest)
		return
	}
	snapshot, err := h.service.Session(r.Context(), profileID, sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.service.SubscribeProgress(r.Context(), profileID)
	defer cancel()

	out := newOutbox(16, func(msg outboundMessage[any]) error {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			// Unblocks ReadJSON so the read loop exits too.
			_ = conn.Close()
			return err
		}
		return nil
	})
	closeSignals := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !out.enqueue(outboundMessage[any]{Type: "progress", Payload: update}, closeSignals) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	alive := out.enqueue(outboundMessage[any]{Type: "session", Payload: snapshot}, nil)
	for alive {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		alive = out.enqueue(h.handle(r.Context(), profileID, sessionID, inbound), nil)
	}

	close(closeSignals)
	<-updatesDone
	out.close()
}

// outbox serializes writes to one connection on its own goroutine.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(size int, write func(outboundMessage[any]) error) *outbox {
	o := &outbox{
		send: make(chan outboundMessage[any], size),
		done: make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		for msg := range o.send {
			if err := write(msg); err != nil {
				return
			}
		}
	}()
	return o
}

// enqueue queues msg for writing. It reports false once the writer has stopped
// or stop is closed, and never blocks past either.
func (o *outbox) enqueue(msg outboundMessage[any], stop <-chan struct{}) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	case <-stop:
		return false
	}
}

// close flushes queued messages and waits for the writer. No enqueue may follow.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}

// handle applies one inbound message and returns the reply.
func (h *WSHandler) handle(ctx context.Context, profileID, sessionID string, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "open":
		var payload paragraphPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid open payload")
		}
		snap, err := h.service.OpenParagraph(ctx, profileID, sessionID, payload.Paragraph)
		if err != nil {
			return errorMessage(err.Error())
		}
		return outboundMessage[any]{Type: "session", Payload: snap}
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid select payload")
		}
		snap, err := h.service.SelectAnswer(ctx, profileID, sessionID, payload.Paragraph, payload.Question, payload.Option)
		if err != nil {
			return errorMessage(err.Error())
		}
		return outboundMessage[any]{Type: "session", Payload: snap}
	case "grade":
		var payload paragraphPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid grade payload")
		}
		outcome, err := h.service.GradeParagraph(ctx, profileID, sessionID, payload.Paragraph)
		if err != nil {
			return errorMessage(err.Error())
		}
		return outboundMessage[any]{Type: "graded", Payload: outcome}
	default:
		return errorMessage("unsupported message type")
	}
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}

