package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestErrStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad target", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: not your history", ErrAuthorization), http.StatusForbidden},
		{fmt.Errorf("%w: resolving", ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: no session", ErrNotFound), http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := errStatus(c.err); got != c.want {
			t.Errorf("errStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func newTestServer(t *testing.T) (*server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	settings := GameSettings{
		Durations: PhaseDurations{Pre: time.Hour, Day: time.Hour, Night: time.Hour},
		Seed:      11,
	}
	registry := NewRegistry(settings, store, &fakeTransport{}, nil)
	return &server{
		registry:   registry,
		channels:   NewChannelTable(store),
		hub:        NewHub(),
		membership: store,
	}, store
}

func doJSON(t *testing.T, srv *server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, srv *server, n int) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/sessions", map[string]any{
		"group_id": "group-1",
		"users":    testUsers(n),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp["session_id"]
}

func TestCreateAndSnapshotSession(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv, 10)
	t.Cleanup(func() { srv.registry.Teardown(id) })

	rec := doJSON(t, srv, http.MethodGet, "/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot: %d %s", rec.Code, rec.Body.String())
	}

	var snapshot SessionSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.SessionID != id || snapshot.GroupID != "group-1" {
		t.Errorf("snapshot identity = %s/%s", snapshot.SessionID, snapshot.GroupID)
	}
	if snapshot.Phase != PhasePre || snapshot.Result != ResultRunning {
		t.Errorf("fresh snapshot = %s/%s, want pre/running", snapshot.Phase, snapshot.Result)
	}
	for _, p := range snapshot.Players {
		if p.Role != "" {
			t.Errorf("running snapshot leaks the role of %s", p.ID)
		}
	}
}

func TestCreateSessionBadPlayerCount(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/sessions", map[string]any{
		"group_id": "group-1",
		"users":    testUsers(3),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("create with 3 users: %d, want 400", rec.Code)
	}
}

func TestSnapshotUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := doJSON(t, srv, http.MethodGet, "/sessions/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d, want 404", rec.Code)
	}
}

func TestVoteEndpointMapsValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv, 10)
	t.Cleanup(func() { srv.registry.Teardown(id) })

	// Still pre phase, so the engine rejects the vote.
	rec := doJSON(t, srv, http.MethodPost, "/sessions/"+id+"/votes", actionRequest{
		ActorID:  "p1",
		TargetID: "p2",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("pre-phase vote: %d, want 400", rec.Code)
	}
}

func TestHistoryEndpointMapsAuthorization(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv, 10)
	t.Cleanup(func() { srv.registry.Teardown(id) })

	g, err := srv.registry.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	toDay(t, g)

	villager := livingVillager(t, g)
	rec := doJSON(t, srv, http.MethodGet, "/sessions/"+id+"/guards?viewer="+villager.ID, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("guard history for a villager: %d, want 403", rec.Code)
	}

	hunter := byRole(t, g, RoleHunter)
	rec = doJSON(t, srv, http.MethodGet, "/sessions/"+id+"/guards?viewer="+hunter.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("guard history for the hunter: %d %s", rec.Code, rec.Body.String())
	}
}

func TestTeardownEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	id := createSession(t, srv, 10)

	if rec := doJSON(t, srv, http.MethodDelete, "/sessions/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("teardown: %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodGet, "/sessions/"+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("snapshot after teardown: %d, want 404", rec.Code)
	}
	if got, ok := store.result(id); !ok || got != ResultAbandoned {
		t.Errorf("persisted result = %s (%v), want abandoned", got, ok)
	}
}

func TestAddMemberEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/groups/group-1/members", map[string]string{"user_id": "p9"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("add member: %d %s", rec.Code, rec.Body.String())
	}
	if ok, _ := store.IsMember("group-1", "p9"); !ok {
		t.Error("member not recorded")
	}

	rec = doJSON(t, srv, http.MethodPost, "/groups/group-1/members", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("add member without user_id: %d, want 400", rec.Code)
	}
}
