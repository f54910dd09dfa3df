package main

import (
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// server is the thin HTTP/WS shell over the session engine. It parses
// requests, calls the engine, and maps the error taxonomy to statuses; no
// game rule lives here.
type server struct {
	registry   *Registry
	channels   *ChannelTable
	hub        *Hub
	store      *SQLStore
	membership MembershipStore
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError("writeJSON", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errStatus(err), map[string]string{"error": err.Error()})
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID string `json:"group_id"`
		Users   []User `json:"users"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrValidation)
		return
	}

	game, err := s.registry.Create(req.GroupID, req.Users)
	if err != nil {
		writeError(w, err)
		return
	}
	s.channels.Open(req.GroupID, game)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": game.ID})
}

func (s *server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	game, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game.Snapshot())
}

func (s *server) handleTeardown(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Teardown(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actionRequest is the body of every action submission.
type actionRequest struct {
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id"`
}

func (s *server) handleAction(submit func(g *Game, actorID, targetID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		game, err := s.registry.Get(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, err)
			return
		}
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, ErrValidation)
			return
		}
		if err := submit(game, req.ActorID, req.TargetID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	game, err := s.registry.Get(vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game.PlayerState(vars["viewer"]))
}

func (s *server) handleHistory(query func(g *Game, viewerID string) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		game, err := s.registry.Get(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, err)
			return
		}
		result, err := query(game, r.URL.Query().Get("viewer"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["group"]
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, ErrValidation)
		return
	}

	type memberAdder interface{ AddMember(groupID, userID string) error }
	adder, ok := s.membership.(memberAdder)
	if !ok {
		writeError(w, ErrValidation)
		return
	}
	if err := adder.AddMember(groupID, req.UserID); err != nil {
		logError("handleAddMember", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// chatMessage is what participants send over the websocket.
type chatMessage struct {
	Text string `json:"text"`
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group")
	userID := r.URL.Query().Get("user")
	if groupID == "" || userID == "" {
		http.Error(w, "group and user required", http.StatusBadRequest)
		return
	}

	channel, err := s.channels.Get(groupID)
	if err != nil {
		http.Error(w, "no running session for group", http.StatusNotFound)
		return
	}

	connID := uuid.NewString()
	if err := channel.Join(userID, connID); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}

	var upgrader = websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error for user %s: %v", userID, err)
		s.channels.Leave(groupID, userID)
		return
	}

	client := &Client{conn: conn, connID: connID, userID: userID, groupID: groupID}
	s.hub.register(client)

	go func() {
		defer func() {
			s.hub.unregister(connID)
			s.channels.Leave(groupID, userID)
		}()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleChat(channel, client, message)
		}
	}()
}

// handleChat routes one inbound chat line through the audience rules.
func (s *server) handleChat(channel *Channel, client *Client, raw []byte) {
	var msg chatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("WebSocket unmarshal error for user %s: %v", client.userID, err)
		return
	}

	msgType, err := channel.OutboundMessageType(client.userID)
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		s.hub.Publish(client.groupID, payload, []string{client.connID})
		return
	}

	payload, err := json.Marshal(map[string]any{
		"type":         "chat",
		"from":         client.userID,
		"message_type": msgType,
		"text":         msg.Text,
	})
	if err != nil {
		logError("handleChat: marshal", err)
		return
	}
	s.hub.Publish(client.groupID, payload, channel.AudienceFor(msgType))
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleTeardown).Methods(http.MethodDelete)

	r.HandleFunc("/sessions/{id}/votes", s.handleAction(func(g *Game, voter, votee string) error {
		return g.ReceiveVote(voter, votee)
	})).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/divinations", s.handleAction(func(g *Game, actor, target string) error {
		return g.ReceiveDivineRequest(actor, target)
	})).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/guards", s.handleAction(func(g *Game, actor, target string) error {
		return g.ReceiveGuardRequest(actor, target)
	})).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/attacks", s.handleAction(func(g *Game, actor, target string) error {
		return g.ReceiveAttackRequest(actor, target)
	})).Methods(http.MethodPost)

	r.HandleFunc("/sessions/{id}/players/{viewer}", s.handlePlayerState).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/divinations", s.handleHistory(func(g *Game, viewer string) (any, error) {
		return g.DivineResult(viewer)
	})).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/guards", s.handleHistory(func(g *Game, viewer string) (any, error) {
		return g.GuardHistory(viewer)
	})).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/attacks", s.handleHistory(func(g *Game, viewer string) (any, error) {
		return g.AttackHistory(viewer)
	})).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/mediums", s.handleHistory(func(g *Game, viewer string) (any, error) {
		return g.MediumResult(viewer)
	})).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/votes", s.handleHistory(func(g *Game, _ string) (any, error) {
		return g.VoteHistory(), nil
	})).Methods(http.MethodGet)

	r.HandleFunc("/groups/{group}/members", s.handleAddMember).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebSocket)
	return r
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env")
	}

	flags := registerFlags()
	flag.Parse()
	cfg := loadConfig(*flags.configPath)
	flags.applyTo(&cfg)
	devMode = cfg.Dev

	store, err := OpenSQLStore(cfg.DB)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer store.Close()

	var membership MembershipStore = store
	if cfg.MembershipBackend == "redis" {
		rm := NewRedisMembership(cfg.RedisAddr)
		defer rm.Close()
		membership = rm
		log.Printf("Membership backend: redis at %s", cfg.RedisAddr)
	}

	hub := NewHub()
	narrator := NewNarrator(cfg)

	registry := NewRegistry(GameSettings{
		Durations:     cfg.durations(),
		AllowSelfVote: cfg.AllowSelfVote,
	}, store, hub, narrator)

	srv := &server{
		registry:   registry,
		channels:   NewChannelTable(membership),
		hub:        hub,
		store:      store,
		membership: membership,
	}

	log.Printf("Server starting on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, srv.routes()))
}
