package gateway

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// changeEvent is pushed to websocket watchers after a successful write so
// other editor sessions can refetch instead of polling.
type changeEvent struct {
	Type       string `json:"type"` // document|section|order|element|deleted
	DocumentID string `json:"document_id"`
	Section    string `json:"section,omitempty"`
	Element    string `json:"element,omitempty"`
}

const (
	writeWait       = 10 * time.Second
	subscriberSlack = 16 // buffered events per subscriber before drop
)

type subscriber struct {
	ch chan changeEvent
}

// hub fans change events out to per-document subscriber sets. Slow
// subscribers lose events rather than block writers; a watcher that cares
// refetches on reconnect anyway.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]bool // doc token -> subscribers
	closed bool
	logger *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{subs: map[string]map[*subscriber]bool{}, logger: logger}
}

func (h *hub) subscribe(docToken string) (*subscriber, func()) {
	sub := &subscriber{ch: make(chan changeEvent, subscriberSlack)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub, func() {}
	}
	set, ok := h.subs[docToken]
	if !ok {
		set = map[*subscriber]bool{}
		h.subs[docToken] = set
	}
	set[sub] = true
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[docToken]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, docToken)
				}
			}
			closed := h.closed
			h.mu.Unlock()
			if !closed {
				close(sub.ch)
			}
		})
	}
	return sub, cancel
}

func (h *hub) broadcast(docToken string, ev changeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[docToken] {
		select {
		case sub.ch <- ev:
		default:
			// Drop rather than block the write path.
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			close(sub.ch)
		}
	}
	h.subs = map[string]map[*subscriber]bool{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin policy is enforced upstream; the gateway itself serves
	// local editor sessions.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWatch upgrades the connection and streams the document's change
// feed until the client disconnects.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub, cancel := s.hub.subscribe(id.Token)
	defer cancel()

	// Reader goroutine: nothing is expected from the client, but reading
	// is what surfaces close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
