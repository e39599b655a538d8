package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"spadetable/internal/transport"
)

// subscriber is one connected client, websocket or long-poll. Frames queue
// on send; a slow consumer loses the oldest frames rather than blocking the
// broadcaster.
type subscriber struct {
	send chan transport.Frame

	mu     sync.Mutex
	topics map[string]bool
	closed bool
}

func newSubscriber() *subscriber {
	return &subscriber{
		send:   make(chan transport.Frame, 32),
		topics: map[string]bool{},
	}
}

func (sub *subscriber) setTopic(destination string, on bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if on {
		sub.topics[destination] = true
	} else {
		delete(sub.topics, destination)
	}
}

func (sub *subscriber) subscribed(destination string) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.topics[destination]
}

func (sub *subscriber) offer(frame transport.Frame) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	for {
		select {
		case sub.send <- frame:
			return
		default:
			select {
			case <-sub.send:
			default:
			}
		}
	}
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.send)
	}
}

// hub fans broadcast frames out to every subscriber of a destination.
type hub struct {
	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	sessions map[string]*subscriber // long-poll subscribers by session id
}

func newHub() *hub {
	return &hub{
		subs:     map[*subscriber]struct{}{},
		sessions: map[string]*subscriber{},
	}
}

func (h *hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.close()
}

func (h *hub) broadcast(frame transport.Frame) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		if sub.subscribed(frame.Destination) {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()
	for _, sub := range targets {
		sub.offer(frame)
	}
}

func (h *hub) addSession(sub *subscriber) string {
	sid := ulid.Make().String()
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.sessions[sid] = sub
	h.mu.Unlock()
	return sid
}

func (h *hub) session(sid string) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[sid]
}

func (h *hub) removeSession(sid string) {
	h.mu.Lock()
	sub := h.sessions[sid]
	delete(h.sessions, sid)
	if sub != nil {
		delete(h.subs, sub)
	}
	h.mu.Unlock()
	if sub != nil {
		sub.close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := newSubscriber()
	s.hub.add(sub)
	log.Debug().Str("remote", r.RemoteAddr).Msg("websocket client connected")

	go s.wsWriteLoop(conn, sub)
	s.wsReadLoop(conn, sub)
}

func (s *Server) wsReadLoop(conn *websocket.Conn, sub *subscriber) {
	defer func() {
		s.hub.remove(sub)
		_ = conn.Close()
	}()
	for {
		var frame transport.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.handleInbound(sub, frame)
	}
}

func (s *Server) wsWriteLoop(conn *websocket.Conn, sub *subscriber) {
	for frame := range sub.send {
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
}

func (s *Server) handleLPConnect(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, errBody("invalid token"))
		return
	}
	sid := s.hub.addSession(newSubscriber())
	log.Debug().Str("session", sid).Msg("long-poll session opened")
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sid})
}

func (s *Server) handleLPRecv(w http.ResponseWriter, r *http.Request) {
	sub := s.hub.session(chi.URLParam(r, "sessionID"))
	if sub == nil {
		writeJSON(w, http.StatusNotFound, errBody("unknown session"))
		return
	}
	window := time.NewTimer(s.recvWindow)
	defer window.Stop()

	var frames []transport.Frame
	select {
	case frame, ok := <-sub.send:
		if !ok {
			writeJSON(w, http.StatusNotFound, errBody("session closed"))
			return
		}
		frames = append(frames, frame)
		// Ship whatever else is already queued in the same response.
	drain:
		for {
			select {
			case extra, ok := <-sub.send:
				if !ok {
					break drain
				}
				frames = append(frames, extra)
			default:
				break drain
			}
		}
	case <-window.C:
		w.WriteHeader(http.StatusNoContent)
		return
	case <-r.Context().Done():
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, frames)
}

func (s *Server) handleLPSend(w http.ResponseWriter, r *http.Request) {
	sub := s.hub.session(chi.URLParam(r, "sessionID"))
	if sub == nil {
		writeJSON(w, http.StatusNotFound, errBody("unknown session"))
		return
	}
	var frame transport.Frame
	if err := readJSON(r, &frame); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("malformed frame"))
		return
	}
	s.handleInbound(sub, frame)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLPDelete(w http.ResponseWriter, r *http.Request) {
	s.hub.removeSession(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}
