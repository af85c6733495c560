/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Seednode/kakaroto/game"
	"github.com/Seednode/kakaroto/store"
)

type fakeLibrary struct {
	collections []game.Collection
}

func (l fakeLibrary) GetCollection(_ context.Context, id int64) (game.Collection, error) {
	for _, c := range l.collections {
		if c.ID == id {
			return c, nil
		}
	}

	return game.Collection{}, store.ErrCollectionNotFound
}

func (l fakeLibrary) ListCollections(_ context.Context, query string, limit int) ([]game.Collection, error) {
	var out []game.Collection
	for _, c := range l.collections {
		if len(out) == limit {
			break
		}
		if strings.Contains(strings.ToLower(c.Title), strings.ToLower(query)) {
			out = append(out, c)
		}
	}

	return out, nil
}

var testLibrary = fakeLibrary{collections: []game.Collection{
	{
		ID:    1,
		Title: "Pirates",
		Cards: []game.Card{
			{Type: game.Normal, Question: "$1 drinks rum"},
			{Type: game.Normal, Question: "$1 and $2 sing a shanty"},
			{Type: game.Normal, Question: "Everybody drinks"},
		},
	},
	{
		ID:    2,
		Title: "Ninjas",
		Cards: []game.Card{{Type: game.Normal, Question: "$1 hides"}},
	},
	{
		ID:    3,
		Title: "Trios",
		Cards: []game.Card{
			{Type: game.Normal, Question: "$1, $2 and $3 arm wrestle"},
			{Type: game.Normal, Question: "$1 hides"},
			{Type: game.Normal, Question: "$1 and $2 toast"},
			{Type: game.Normal, Question: "$1 and $2 swap drinks"},
		},
	},
}}

func newTestServer(t *testing.T, storage game.Storage) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &Config{sessionTimeout: time.Minute}

	errs := make(chan error, 16)

	srv := httptest.NewServer(newRouter(ctx, cfg, testLibrary, storage, errs))
	t.Cleanup(srv.Close)

	return srv
}

// serverMessage is the union of every message the hub sends.
type serverMessage struct {
	Type    string    `json:"type"`
	GameID  string    `json:"game_id"`
	IsHost  bool      `json:"is_host"`
	Game    game.View `json:"game"`
	Message string    `json:"message"`
}

func dial(t *testing.T, srv *httptest.Server, gameID, playerID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/play/" + gameID + "/ws"

	header := http.Header{}
	header.Set("Cookie", playerCookieName+"="+playerID)

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func read(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg serverMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}

	return msg
}

func readState(t *testing.T, conn *websocket.Conn) game.View {
	t.Helper()

	msg := read(t, conn)
	if msg.Type != "state" {
		t.Fatalf("expected state message, got %+v", msg)
	}

	return msg.Game
}

func readError(t *testing.T, conn *websocket.Conn, want error) {
	t.Helper()

	msg := read(t, conn)
	if msg.Type != "error" || msg.Message != want.Error() {
		t.Fatalf("expected error %q, got %+v", want, msg)
	}
}

func sendCommand(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func join(t *testing.T, srv *httptest.Server, gameID, playerID string) (*websocket.Conn, bool, game.View) {
	t.Helper()

	conn := dial(t, srv, gameID, playerID)

	info := read(t, conn)
	if info.Type != "session_info" || info.GameID != gameID {
		t.Fatalf("expected session_info for %s, got %+v", gameID, info)
	}

	return conn, info.IsHost, readState(t, conn)
}

func TestHubHostDrivesGame(t *testing.T) {
	srv := newTestServer(t, store.NewMemory())

	host, isHost, view := join(t, srv, "game1", "host")
	if !isHost {
		t.Fatal("expected first connection to be host")
	}
	if view.State != game.None || len(view.Players) != 0 {
		t.Fatalf("expected empty lobby, got %+v", view)
	}

	sendCommand(t, host, ClientMessage{Type: "add_player", Name: "Ana"})
	readState(t, host)
	sendCommand(t, host, ClientMessage{Type: "add_player", Name: "Bo"})
	view = readState(t, host)
	if len(view.Players) != 2 {
		t.Fatalf("expected 2 players, got %+v", view.Players)
	}

	guest, isHost, view := join(t, srv, "game1", "guest")
	if isHost {
		t.Error("expected second connection not to be host")
	}
	if len(view.Players) != 2 {
		t.Errorf("expected guest to see 2 players, got %+v", view.Players)
	}

	sendCommand(t, guest, ClientMessage{Type: "add_player", Name: "Cy"})
	readError(t, guest, errNotHost)

	sendCommand(t, host, ClientMessage{Type: "start"})
	readError(t, host, errNoCollections)

	sendCommand(t, host, ClientMessage{Type: "add_collection", CollectionID: 99})
	readError(t, host, store.ErrCollectionNotFound)

	sendCommand(t, host, ClientMessage{Type: "add_collection", CollectionID: 1})
	view = readState(t, host)
	if len(view.SelectedCollections) != 1 || view.SelectedCollections[0].Title != "Pirates" {
		t.Fatalf("expected Pirates selected, got %+v", view.SelectedCollections)
	}
	if got := readState(t, guest); len(got.SelectedCollections) != 1 {
		t.Errorf("expected guest to see the selection, got %+v", got.SelectedCollections)
	}

	sendCommand(t, host, ClientMessage{Type: "start"})
	view = readState(t, host)
	if view.State != game.Started || view.Current == nil || view.Round != 1 {
		t.Fatalf("expected first challenge, got %+v", view)
	}
	if got := readState(t, guest); got.State != game.Started {
		t.Errorf("expected guest to see the game start, got %q", got.State)
	}

	sendCommand(t, host, ClientMessage{Type: "skip"})
	readError(t, host, game.ErrNotOngoing)

	sendCommand(t, host, ClientMessage{Type: "next"})
	if view = readState(t, host); view.Round != 2 {
		t.Errorf("expected round 2, got %d", view.Round)
	}

	sendCommand(t, host, ClientMessage{Type: "remove_player", Name: "Bo"})
	readState(t, host)
	sendCommand(t, host, ClientMessage{Type: "check_players"})
	readError(t, host, game.ErrNotEnoughPlayers)

	sendCommand(t, host, ClientMessage{Type: "reset"})
	if view = readState(t, host); view.State != game.None || len(view.Players) != 0 {
		t.Errorf("expected empty lobby after reset, got %+v", view)
	}
}

func TestHubManagesPlayersMidGame(t *testing.T) {
	srv := newTestServer(t, store.NewMemory())

	host, _, _ := join(t, srv, "game1", "host")

	for _, name := range []string{"Ana", "Bo", "Cy"} {
		sendCommand(t, host, ClientMessage{Type: "add_player", Name: name})
		readState(t, host)
	}

	sendCommand(t, host, ClientMessage{Type: "add_collection", CollectionID: 3})
	readState(t, host)

	sendCommand(t, host, ClientMessage{Type: "start"})
	view := readState(t, host)
	if view.State != game.Started || view.Current == nil || view.CardsLeft != 3 {
		t.Fatalf("expected first of four challenges, got %+v", view)
	}

	// the three player card is the first one in the deck
	trioPlayed := view.Current.ID == 0

	sendCommand(t, host, ClientMessage{Type: "remove_player", Name: "Cy"})
	if view = readState(t, host); len(view.Players) != 2 || view.State != game.Started {
		t.Fatalf("expected two players mid-game, got %+v", view)
	}

	sendCommand(t, host, ClientMessage{Type: "check_players"})
	view = readState(t, host)
	want := 2
	if trioPlayed {
		want = 3
	}
	if view.CardsLeft != want {
		t.Errorf("expected %d cards left for two players, got %d", want, view.CardsLeft)
	}

	sendCommand(t, host, ClientMessage{Type: "remove_player", Name: "Bo"})
	readState(t, host)
	sendCommand(t, host, ClientMessage{Type: "check_players"})
	readError(t, host, game.ErrNotEnoughPlayers)

	sendCommand(t, host, ClientMessage{Type: "add_player", Name: "Dee"})
	readState(t, host)
	sendCommand(t, host, ClientMessage{Type: "add_player", Name: "Eve"})
	readState(t, host)

	sendCommand(t, host, ClientMessage{Type: "check_players"})
	view = readState(t, host)
	if view.CardsLeft != 3 || view.State != game.Started || view.Round != 1 {
		t.Errorf("expected three cards left in round 1, got %+v", view)
	}
}

func TestHubResumesSavedGame(t *testing.T) {
	storage := store.NewMemory()

	first := newTestServer(t, storage)
	host, _, _ := join(t, first, "resume", "host")

	for _, msg := range []ClientMessage{
		{Type: "add_player", Name: "Ana"},
		{Type: "add_player", Name: "Bo"},
		{Type: "add_collection", CollectionID: 1},
		{Type: "start"},
	} {
		sendCommand(t, host, msg)
		readState(t, host)
	}

	if _, err := storage.Load(gameStorageKey("resume")); err != nil {
		t.Fatalf("expected saved game: %v", err)
	}

	second := newTestServer(t, storage)
	_, _, view := join(t, second, "resume", "someone")

	if view.State != game.Started || len(view.Players) != 2 || view.Current == nil {
		t.Errorf("expected the started game to resume, got %+v", view)
	}
}

func TestHubGamesAreIsolated(t *testing.T) {
	srv := newTestServer(t, store.NewMemory())

	a, _, _ := join(t, srv, "gameA", "host")
	sendCommand(t, a, ClientMessage{Type: "add_player", Name: "Ana"})
	readState(t, a)

	_, isHost, view := join(t, srv, "gameB", "host")
	if !isHost {
		t.Error("expected host of an empty game")
	}
	if len(view.Players) != 0 {
		t.Errorf("expected no players in another game, got %+v", view.Players)
	}
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestRedirectNewGame(t *testing.T) {
	srv := newTestServer(t, store.NewMemory())

	resp, err := noRedirectClient().Get(srv.URL + "/play")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !regexp.MustCompile(`^/play/[A-Za-z0-9]{8}$`).MatchString(loc) {
		t.Errorf("unexpected redirect target %q", loc)
	}
}

func TestGamePage(t *testing.T) {
	srv := newTestServer(t, store.NewMemory())

	resp, err := http.Get(srv.URL + "/play/abcd1234")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}

	found := false
	for _, c := range resp.Cookies() {
		if c.Name == playerCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a player cookie")
	}

	resp, err = http.Get(srv.URL + "/play/" + strings.Repeat("a", 65))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for an invalid game id, got %d", resp.StatusCode)
	}
}

func TestQRCode(t *testing.T) {
	srv := newTestServer(t, store.NewMemory())

	resp, err := http.Get(srv.URL + "/play/abcd1234/qr")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "\x89PNG") {
		t.Error("expected a PNG body")
	}
}

func TestCollectionsAPI(t *testing.T) {
	srv := newTestServer(t, store.NewMemory())

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Pirates", "Ninjas", "Trios"}},
		{"?q=PIR", []string{"Pirates"}},
		{"?limit=1", []string{"Pirates"}},
		{"?q=robots", []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/collections" + tc.query)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			var got []game.CollectionSummary
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}

			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %+v", tc.want, got)
			}
			for i, title := range tc.want {
				if got[i].Title != title {
					t.Errorf("expected %q at %d, got %q", title, i, got[i].Title)
				}
			}
		})
	}
}

func TestStaticRoutes(t *testing.T) {
	srv := newTestServer(t, store.NewMemory())

	tests := []struct {
		path        string
		status      int
		contentType string
		body        string
	}{
		{"/", http.StatusOK, "text/html", "Kakaroto"},
		{"/healthz", http.StatusOK, "text/plain", "Ok"},
		{"/version", http.StatusOK, "text/plain", "kakaroto v" + releaseVersion},
		{"/robots.txt", http.StatusOK, "text/plain", "Disallow: /play/"},
		{"/assets/game/app.js", http.StatusOK, "text/javascript", "WebSocket"},
		{"/assets/game/app.js", http.StatusOK, "text/javascript", "check_players"},
		{"/assets/game/app.css", http.StatusOK, "text/css", ".challenge"},
		{"/assets/favicon.svg", http.StatusOK, "image/svg+xml", "<svg"},
		{"/assets/missing.js", http.StatusNotFound, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tc.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if !strings.HasPrefix(resp.Header.Get("Content-Type"), tc.contentType) {
				t.Errorf("expected content type %q, got %q", tc.contentType, resp.Header.Get("Content-Type"))
			}

			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tc.body) {
				t.Errorf("expected body to contain %q", tc.body)
			}
		})
	}
}

func TestGameManagerReapsIdleHubs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gm := newGameManager(ctx, &Config{}, testLibrary, store.NewMemory())

	hub := gm.getHub("idle")
	if gm.getHub("idle") != hub {
		t.Fatal("expected the same hub for the same game id")
	}

	gm.reap(time.Now().Add(-time.Minute))
	if gm.getHub("idle") != hub {
		t.Fatal("expected an active hub to survive")
	}

	gm.reap(time.Now().Add(time.Minute))

	select {
	case <-hub.quit:
	case <-time.After(5 * time.Second):
		t.Fatal("expected the idle hub to be closed")
	}

	if gm.getHub("idle") == hub {
		t.Error("expected a fresh hub after reaping")
	}
}

func TestNewGameID(t *testing.T) {
	gm := &GameManager{hubs: make(map[string]*Hub)}

	seen := make(map[string]bool)
	for range 100 {
		id := gm.newGameID()
		if !regexp.MustCompile(`^[A-Za-z0-9]{8}$`).MatchString(id) {
			t.Fatalf("unexpected game id %q", id)
		}
		seen[id] = true
	}

	if len(seen) < 99 {
		t.Errorf("expected unique ids, got %d distinct out of 100", len(seen))
	}
}
