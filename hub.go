/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Kakaroto online games
//
// One browser (usually on a big screen or passed around the table) hosts a
// game; everyone else can follow along by scanning the QR code.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - First connection to a game becomes the host
// - Only the host can change the roster, pick collections and deal cards
// - Players identified by cookie (playerID)
// - Every change is broadcast as the full game view
// - Games are saved under their ID and resume after a reload or restart
// - Games are unloaded after a configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current game, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/kakaroto/game"
)

const (
	playerCookieName = "kakaroto_id"
	libraryTimeout   = 5 * time.Second
)

var (
	gameIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	errNotHost       = errors.New("only the host can do that")
	errNoCollections = errors.New("pick at least one collection first")
)

// Messages coming from clients
type ClientMessage struct {
	Type         string `json:"type"`                    // "add_player", "remove_player", "add_collection", "remove_collection", "start", "next", "skip", "check_players", "reset"
	Name         string `json:"name,omitempty"`          // add_player / remove_player
	CollectionID int64  `json:"collection_id,omitempty"` // add_collection / remove_collection
}

// StateMessage carries the whole game as everyone should see it.
type StateMessage struct {
	Type string    `json:"type"` // "state"
	Game game.View `json:"game"`
}

// SessionInfoMessage is sent immediately on connect so the client knows
// what role this cookie has.
type SessionInfoMessage struct {
	Type   string `json:"type"` // "session_info"
	GameID string `json:"game_id"`
	IsHost bool   `json:"is_host"`
}

// SimpleMessage is for generic notifications ("error", etc.)
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type command struct {
	client     *Client
	msg        ClientMessage
	collection game.Collection
	err        error
}

type Hub struct {
	id      string
	session *game.Session
	library Library
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	commands chan command
	quit     chan struct{}
	closed   bool

	mu sync.RWMutex

	createdAt    time.Time
	lastActive   time.Time
	hostPlayerID string // cookie/playerID of the first connection
}

func newHub(gameID string, session *game.Session, library Library) *Hub {
	now := time.Now()
	return &Hub{
		id:         gameID,
		session:    session,
		library:    library,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		quit:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case <-h.quit:
			return

		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()

			if h.hostPlayerID == "" {
				h.hostPlayerID = c.playerID
			}

			h.clients[c] = true

			h.sendLocked(c, SessionInfoMessage{
				Type:   "session_info",
				GameID: h.id,
				IsHost: h.hostPlayerID == c.playerID,
			})
			h.sendLocked(c, h.stateLocked())

			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case cmd := <-h.commands:
			h.handleCommand(cfg, cmd)
		}
	}
}

func (h *Hub) stateLocked() StateMessage {
	return StateMessage{
		Type: "state",
		Game: h.session.View(),
	}
}

// sendLocked queues msg for a single client, dropping it if it can't keep up.
func (h *Hub) sendLocked(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

// handleCommand applies one host command to the session and broadcasts the
// result. Errors only go back to the client that sent the command.
func (h *Hub) handleCommand(cfg *Config, cmd command) {
	c := cmd.client
	msg := cmd.msg

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	var err error

	switch {
	case h.hostPlayerID == "" || c.playerID != h.hostPlayerID:
		err = errNotHost
	case cmd.err != nil:
		err = cmd.err
	default:
		err = h.apply(msg, cmd.collection)
	}

	if err != nil {
		h.sendLocked(c, SimpleMessage{
			Type:    "error",
			Message: err.Error(),
		})

		return
	}

	logf(cfg, "GAMES: %s in %s (round %d, %s)", msg.Type, h.id, h.session.Round(), h.session.State())

	h.broadcastLocked(h.stateLocked())
}

func (h *Hub) apply(msg ClientMessage, collection game.Collection) error {
	s := h.session

	switch msg.Type {
	case "add_player":
		s.AddPlayer(msg.Name)
	case "remove_player":
		s.RemovePlayer(msg.Name)
	case "add_collection":
		s.AddCollection(collection)
	case "remove_collection":
		s.RemoveCollection(msg.CollectionID)
	case "start":
		if len(s.SelectedCollections()) == 0 {
			return errNoCollections
		}
		return s.SetGameState(game.Started)
	case "next":
		s.NextChallenge()
	case "skip":
		if err := s.SkipOngoingChallenge(); err != nil {
			return err
		}
		s.NextChallenge()
	case "check_players":
		return s.CheckPlayersAndSetCards()
	case "reset":
		s.Reset()
	}

	return nil
}

// closeAll disconnects all clients of this hub and stops its run loop (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.quit)

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated game.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration

	ctx     context.Context
	cfg     *Config
	library Library
	storage game.Storage
}

func newGameManager(ctx context.Context, cfg *Config, library Library, storage game.Storage) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
		ctx:         ctx,
		cfg:         cfg,
		library:     library,
		storage:     storage,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func gameStorageKey(gameID string) string {
	return game.StorageKey + ":" + gameID
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	session := game.New(
		game.WithStorage(gm.storage, gameStorageKey(gameID)),
		game.WithLogf(func(format string, args ...any) {
			logf(gm.cfg, format, args...)
		}),
	)

	hub := newHub(gameID, session, gm.library)
	gm.hubs[gameID] = hub
	go hub.run(gm.cfg)
	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically unloads hubs that have been idle longer than
// idleTimeout. Their games stay in storage.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.ctx.Done():
			gm.mu.Lock()
			for id, hub := range gm.hubs {
				delete(gm.hubs, id)
				hub.closeAll()
			}
			gm.mu.Unlock()

			return

		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			logf(gm.cfg, "GAMES: Unloaded idle game %s", id)
			go hub.closeAll()
		}
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !gameIDPattern.MatchString(gameID) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)

		hub := gm.getHub(gameID)

		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade for %s: %v", gameID, err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 16),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		cmd := command{
			client: c,
			msg:    msg,
		}

		switch msg.Type {
		case "add_collection":
			// looked up here so a slow database never stalls the hub
			ctx, cancel := context.WithTimeout(context.Background(), libraryTimeout)
			cmd.collection, cmd.err = h.library.GetCollection(ctx, msg.CollectionID)
			cancel()
		case "add_player", "remove_player", "remove_collection", "start", "next", "skip", "check_players", "reset":
		default:
			// ignore unknown types
			continue
		}

		select {
		case h.commands <- cmd:
		case <-h.quit:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !gameIDPattern.MatchString(gameID) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func serveGamePage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !gameIDPattern.MatchString(ps.ByName("gameid")) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		data, err := assets.ReadFile("assets/game/index.html")
		if err != nil {
			errs <- err

			http.Error(w, "page not found", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, err = w.Write(data)
		if err != nil {
			errs <- err
		}
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerGame(cfg *Config, path string, mux *httprouter.Router, gm *GameManager, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", serveGamePage(cfg, errs))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler(cfg))
}
