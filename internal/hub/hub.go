package hub

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"Mercury/internal/event"
	"Mercury/internal/service"
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

// Hub runs the socket side of the system: it accepts connections, completes
// the user-key handshake through the presence service, pumps inbound frames
// through a worker pool into the dispatcher, and tears sessions down.
type Hub struct {
	registry   *Registry
	dispatcher *Dispatcher
	presence   *service.PresenceService

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	allowedOrigins map[string]bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(registry *Registry, dispatcher *Dispatcher, presence *service.PresenceService, allowedOrigins []string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry:       registry,
		dispatcher:     dispatcher,
		presence:       presence,
		register:       make(chan *Client, 1024),
		unregister:     make(chan *Client, 1024),
		inbound:        make(chan inboundMessage, 4096), // buffer for burst handling
		allowedOrigins: make(map[string]bool, len(allowedOrigins)),
		ctx:            ctx,
		cancel:         cancel,
	}

	for _, origin := range allowedOrigins {
		h.allowedOrigins[origin] = true
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-h.inbound:
					h.dispatcher.Dispatch(h.ctx, in.client, in.event)
				}
			}
		}()
	}

	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			if prev := h.registry.Add(c); prev != nil {
				// last connect wins; the displaced session is closed
				log.Printf("displacing previous connection %s for user %s", prev.ID, c.userKey)
				prev.Close()
			}
		case c := <-h.unregister:
			if h.registry.Remove(c) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				h.presence.Disconnect(ctx, c.userKey, c.sender.UserName)
				cancel()
			}
			c.Close()
		}
	}
}

// Stop shuts the hub down. The inbound channel is never closed: readers may
// still be racing their ctx-done arm against a send, so workers drain via
// cancellation only.
func (h *Hub) Stop() {
	h.cancel()
	h.registry.CloseAll()
	h.wg.Wait()
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser client
	}
	return h.allowedOrigins[origin]
}

// ServeWS upgrades the connection and runs the handshake: the user-key
// header (query param fallback for browsers) must name an existing user
// before any event is processed. Handshake failures emit one error frame
// and close the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocketUpgrader
	upgrader.CheckOrigin = h.checkOrigin

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	userKey := r.Header.Get("user-key")
	if userKey == "" {
		userKey = r.URL.Query().Get("user-key")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	user, err := h.presence.Connect(ctx, userKey)
	cancel()
	if err != nil {
		h.rejectConnection(conn, err)
		return
	}

	client := newClient(user, conn, h)

	select {
	case h.register <- client:
		go client.readMessages()
		go client.writeMessages()
	case <-time.After(registerTimeout):
		log.Printf("failed to register client for user %s: timeout", userKey)
		// Connect already flagged the user online; undo it or they stay
		// online forever with no connection behind the flag.
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		h.presence.Disconnect(dctx, user.UserKey, user.UserName)
		dcancel()
		client.cancel()
		conn.Close()
	}
}

// rejectConnection emits the handshake failure as a structured error frame
// before closing, mirroring the error taxonomy for authentication failures.
func (h *Hub) rejectConnection(conn *websocket.Conn, err error) {
	payload := event.ErrorEventPayload{
		Code:      service.CodeSomethingWentWrong,
		Message:   "Connection failed",
		Timestamp: time.Now(),
	}
	if de, ok := err.(*service.DomainError); ok {
		payload.Code = de.Code
		payload.Message = de.Message
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(event.Outbound(event.EventError, payload))
	_ = conn.Close()
}
