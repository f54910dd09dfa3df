package main

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns every live session in the process. It is the only shared
// mutable state between sessions: insert on creation, delete on teardown.
// Handlers receive it explicitly instead of reaching for a package global.
type Registry struct {
	mu        sync.Mutex
	games     map[string]*Game
	settings  GameSettings
	store     Store
	transport Transport
	narrator  *Narrator
}

func NewRegistry(settings GameSettings, store Store, transport Transport, narrator *Narrator) *Registry {
	return &Registry{
		games:     make(map[string]*Game),
		settings:  settings,
		store:     store,
		transport: transport,
		narrator:  narrator,
	}
}

// Create seats the users, starts the session, and registers it. The session
// removes itself once it finishes.
func (r *Registry) Create(groupID string, users []User) (*Game, error) {
	settings := r.settings
	if settings.Seed == 0 {
		settings.Seed = time.Now().UnixNano()
	}

	id := uuid.NewString()
	g, err := NewGame(id, groupID, users, settings, r.store, r.transport, r.narrator, r.Remove)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.games[id] = g
	r.mu.Unlock()

	g.Start()
	return g, nil
}

// Get returns the live session for an id.
func (r *Registry) Get(id string) (*Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return g, nil
}

// Remove deregisters a session. Called by the session itself on finish.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.games[id]
	delete(r.games, id)
	r.mu.Unlock()
	if ok {
		log.Printf("Session %s removed from registry", id)
	}
}

// Teardown forcibly ends a live session.
func (r *Registry) Teardown(id string) error {
	g, err := r.Get(id)
	if err != nil {
		return err
	}
	g.Teardown()
	return nil
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}
