// Package devserver is a local stand-in for the real table backend. It
// speaks the same REST paths, websocket frame protocol and long-poll
// endpoints the client stack uses, and plays one scripted hand per start so
// the full channel/poll/view pipeline can be exercised without a backend.
package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"spadetable/internal/channel"
	"spadetable/internal/config"
	"spadetable/internal/transport"
)

type Server struct {
	cfg        config.DevBackendConfig
	hub        *hub
	game       *demoGame
	upgrader   websocket.Upgrader
	recvWindow time.Duration

	mu         sync.Mutex
	joined     bool
	cancelHand context.CancelFunc
}

func New(cfg config.DevBackendConfig) *Server {
	return &Server{
		cfg:        cfg,
		hub:        newHub(),
		game:       newDemoGame(cfg.TableID),
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		recvWindow: 25 * time.Second,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Use(requestLogger())
		r.Post("/users/login", s.handleLogin)
		r.Post("/users/register", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(s.bearerAuth)
			r.Get("/players/me", s.handleMe)
			r.Get("/players/current-table", s.handleCurrentTable)
			r.Post("/tables/{tableID}/join", s.handleJoinTable)
			r.Post("/tables/{tableID}/leave", s.handleLeaveTable)
			r.Get("/games/tables/{tableID}/status", s.handleStatus)
			r.Post("/games/tables/{tableID}/start", s.handleStart)
			r.Post("/games/tables/{tableID}/end", s.handleEnd)
			r.Post("/games/tables/{tableID}/action", s.handleAction)
		})
	})

	r.Get("/ws", s.handleWS)
	r.Route("/ws/lp", func(r chi.Router) {
		r.Use(requestLogger())
		r.Post("/connect", s.handleLPConnect)
		r.Get("/{sessionID}/recv", s.handleLPRecv)
		r.Post("/{sessionID}/send", s.handleLPSend)
		r.Delete("/{sessionID}", s.handleLPDelete)
	})
	return r
}

func (s *Server) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+s.cfg.Token
}

func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, errBody("invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &body); err != nil || body.Username == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, errBody("username and password required"))
		return
	}
	// Any credentials work locally; the token is what the client must echo.
	writeJSON(w, http.StatusOK, map[string]string{"token": s.cfg.Token})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := readJSON(r, &body); err != nil || body.Username == "" {
		writeJSON(w, http.StatusBadRequest, errBody("username required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"playerId": 1,
		"username": "dev-hero",
		"chips":    1000,
	})
}

func (s *Server) handleCurrentTable(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	joined := s.joined
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"isAtTable": joined,
		"tableId":   s.cfg.TableID,
	})
}

func (s *Server) handleJoinTable(w http.ResponseWriter, r *http.Request) {
	if !s.tableMatches(r) {
		writeJSON(w, http.StatusNotFound, errBody("no such table"))
		return
	}
	s.mu.Lock()
	s.joined = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLeaveTable(w http.ResponseWriter, r *http.Request) {
	if !s.tableMatches(r) {
		writeJSON(w, http.StatusNotFound, errBody("no such table"))
		return
	}
	s.mu.Lock()
	s.joined = false
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.tableMatches(r) {
		writeJSON(w, http.StatusNotFound, errBody("no such table"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"gameState": s.game.snapshot(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.tableMatches(r) {
		writeJSON(w, http.StatusNotFound, errBody("no such table"))
		return
	}
	if s.game.isActive() {
		writeJSON(w, http.StatusConflict, errBody("game already running"))
		return
	}
	bigBlind, _ := strconv.Atoi(r.URL.Query().Get("bigBlind"))
	s.game.start(bigBlind)
	s.broadcastEvent(channel.EventGameStarted)

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancelHand = cancel
	s.mu.Unlock()
	go s.runHand(ctx)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if !s.tableMatches(r) {
		writeJSON(w, http.StatusNotFound, errBody("no such table"))
		return
	}
	s.stopHand()
	s.game.end()
	s.broadcastEvent(channel.EventGameEnded)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if !s.tableMatches(r) {
		writeJSON(w, http.StatusNotFound, errBody("no such table"))
		return
	}
	var body channel.ActionMessage
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("malformed action"))
		return
	}
	if !s.game.applyAction(1, body.Action, body.Amount) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "action rejected"})
		return
	}
	s.broadcastEvent(channel.EventPlayerAction)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"gameState": s.game.snapshot(),
	})
}

// runHand steps the scripted hand through its stages until showdown.
func (s *Server) runHand(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StageInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stage, over := s.game.advance()
			if over {
				s.broadcastEvent(channel.EventWinnerDeclared)
				s.broadcastEvent(channel.EventGameEnded)
				log.Info().Int64("table", s.cfg.TableID).Msg("scripted hand finished")
				return
			}
			s.broadcastEvent(channel.EventStageChanged)
			if stage != "" && communityCount[stage] > 0 {
				s.broadcastEvent(channel.EventCommunityCards)
			}
			log.Info().Str("stage", stage).Int64("table", s.cfg.TableID).Msg("stage advanced")
		}
	}
}

func (s *Server) stopHand() {
	s.mu.Lock()
	if s.cancelHand != nil {
		s.cancelHand()
		s.cancelHand = nil
	}
	s.mu.Unlock()
}

// handleInbound routes a client frame that arrived over either transport.
func (s *Server) handleInbound(sub *subscriber, frame transport.Frame) {
	switch frame.Type {
	case transport.FrameSubscribe:
		sub.setTopic(frame.Destination, true)
	case transport.FrameUnsubscribe:
		sub.setTopic(frame.Destination, false)
	case transport.FrameSend:
		s.handleClientSend(frame)
	}
}

func (s *Server) handleClientSend(frame transport.Frame) {
	tableID, verb, ok := parseGameDest(frame.Destination)
	if !ok || tableID != s.cfg.TableID {
		return
	}
	switch verb {
	case "connect":
		s.broadcastEvent(channel.EventPlayerConnected)
	case "disconnect":
		s.broadcastEvent(channel.EventPlayerDisconnected)
	case "action":
		var action channel.ActionMessage
		if err := json.Unmarshal(frame.Body, &action); err != nil {
			return
		}
		if s.game.applyAction(1, action.Action, action.Amount) {
			s.broadcastEvent(channel.EventPlayerAction)
		}
	}
}

// parseGameDest splits "game/{id}/{verb}" control destinations.
func parseGameDest(destination string) (tableID int64, verb string, ok bool) {
	rest, found := strings.CutPrefix(destination, "game/")
	if !found {
		return 0, "", false
	}
	idPart, verb, found := strings.Cut(rest, "/")
	if !found || verb == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, verb, true
}

// broadcastEvent publishes the current snapshot on the table topic, wrapped
// in the event envelope the channel client expects.
func (s *Server) broadcastEvent(eventType string) {
	payload, err := json.Marshal(s.game.snapshot())
	if err != nil {
		return
	}
	env := channel.Envelope{Type: eventType, Payload: payload}
	body, err := json.Marshal(env)
	if err != nil {
		return
	}
	topic := channel.TableTopic(s.cfg.TableID)
	s.hub.broadcast(transport.Frame{
		Type:        transport.FrameMessage,
		Destination: topic,
		Body:        body,
	})
}

func (s *Server) tableMatches(r *http.Request) bool {
	id, err := strconv.ParseInt(chi.URLParam(r, "tableID"), 10, 64)
	return err == nil && id == s.cfg.TableID
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func errBody(message string) map[string]string {
	return map[string]string{"message": message}
}
