// Buzzbox session relay
//
// A single moderator (the host) runs timed rounds in which every connected
// participant reacts either by pressing a buzzer or by submitting a free-text
// answer. The host sees reactions in arrival order, watches participants come
// and go, and can reset or reconfigure the round for everyone at once.
//
// Features:
// - Separate WebSocket endpoints per audience: /ws for participants, /host/ws for the host
// - Participants identified by a browser-minted player ID, reused across reconnects
// - Reconnecting with a known player ID supersedes the old connection in place
// - Every login is answered with the current round snapshot, so rejoining
//   participants resume correct UI state mid-round
// - First reaction wins: enablement is flipped in the same dispatch step that
//   appends to the ledger, so repeat buzzes are no-ops even from stale clients
// - Host can start rounds, switch between buzzer and answer modes, reset the
//   current round, and reveal submitted answers
// - Request/ack frames carry a caller-chosen correlation id; exactly one ack
//   is sent per id
// - In-browser QR code to share the join URL, backed by go-qrcode

package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients (participants and host alike)
type ClientMessage struct {
	Type     string `json:"type"`               // see readPump for the closed set
	ID       int    `json:"id,omitempty"`       // correlation id for request/ack calls
	PlayerID string `json:"playerId,omitempty"` // login / getClient
	Name     string `json:"name,omitempty"`     // login
	Text     string `json:"text,omitempty"`     // message
	Mode     string `json:"mode,omitempty"`     // newRound
}

// AckMessage answers a request frame that carried a correlation id.
type AckMessage struct {
	Type   string `json:"type"` // "ack"
	ID     int    `json:"id"`
	Result any    `json:"result,omitempty"`
}

// ConnectionMessage notifies the host of an anonymous connect or a disconnect.
type ConnectionMessage struct {
	Type      string `json:"type"`               // "clientConnect" or "clientDisconnect"
	SessionID string `json:"sessionId"`          // connection identity
	PlayerID  string `json:"playerId,omitempty"` // known identity, disconnect only
}

// LoginMessage notifies the host that a participant logged in (or rejoined).
type LoginMessage struct {
	Type   string      `json:"type"` // "clientLogin"
	Player Participant `json:"player"`
}

// ReactionMessage carries one accepted reaction to the host's live feed.
type ReactionMessage struct {
	Type     string   `json:"type"` // "reaction"
	Reaction Reaction `json:"reaction"`
}

// SnapshotMessage is the host's view of the registry and ledger.
type SnapshotMessage struct {
	Type      string        `json:"type"` // "clients"
	Mode      Mode          `json:"mode"`
	Locked    bool          `json:"locked"`
	Players   []Participant `json:"players"`
	Reactions []Reaction    `json:"reactions"`
}

// UpdateClientMessage is the per-participant state push. Sent on login as the
// round resync, and to a reactor when its reaction is accepted.
type UpdateClientMessage struct {
	Type     string `json:"type"` // "updateClient"
	Enabled  bool   `json:"enabled"`
	Mode     Mode   `json:"mode"`
	Position int    `json:"position,omitempty"`
}

// UpdateClientsMessage is the bulk display directive sent to every
// participant, used by reveal. It never reflects a registry mutation.
type UpdateClientsMessage struct {
	Type    string `json:"type"` // "updateClients"
	Enabled bool   `json:"enabled"`
}

// QueryClientsMessage prompts a participant to re-send its login, reconciling
// a stateless transport reconnect with server-held session truth.
type QueryClientsMessage struct {
	Type string `json:"type"` // "queryClients"
}

type Client struct {
	conn      *websocket.Conn
	send      chan any
	sessionID string
	playerID  string // set once this connection completes a login
	host      bool
}

type frame struct {
	client *Client
	msg    ClientMessage
}

// Hub relays between the two audiences and owns the Session. All session
// mutations happen inside run(), one frame at a time; the arrival order at
// the frames channel is what assigns ledger positions.
type Hub struct {
	session *Session

	clients map[*Client]bool // participant audience
	hosts   map[*Client]bool // host audience

	register chan *Client
	unreg    chan *Client
	frames   chan frame
}

func newHub(session *Session) *Hub {
	return &Hub{
		session:  session,
		clients:  make(map[*Client]bool),
		hosts:    make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		frames:   make(chan frame, 64),
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(cfg, c)

		case c := <-h.unreg:
			h.handleUnregister(cfg, c)

		case f := <-h.frames:
			if f.client.host {
				h.handleHostFrame(cfg, f)
			} else {
				h.handleClientFrame(cfg, f)
			}
		}
	}
}

// deliver sends to one connection, evicting it if its buffer is full. A
// connection that cannot keep up is treated the same as one that dropped.
func (h *Hub) deliver(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		if c.host {
			delete(h.hosts, c)
		} else {
			delete(h.clients, c)
		}
		close(c.send)
	}
}

func (h *Hub) broadcastHosts(msg any) {
	for c := range h.hosts {
		h.deliver(c, msg)
	}
}

func (h *Hub) broadcastClients(msg any) {
	for c := range h.clients {
		h.deliver(c, msg)
	}
}

// unicast sends to the live connection bound to one participant, tolerating
// "connection not currently live" as a silent drop.
func (h *Hub) unicast(p *Participant, msg any) {
	for c := range h.clients {
		if c.sessionID == p.SessionID {
			h.deliver(c, msg)
			return
		}
	}
}

func (h *Hub) snapshot() SnapshotMessage {
	return SnapshotMessage{
		Type:      "clients",
		Mode:      h.session.Mode(),
		Locked:    h.session.Locked(),
		Players:   h.session.Participants(),
		Reactions: h.session.Reactions(),
	}
}

func (h *Hub) handleRegister(cfg *Config, c *Client) {
	if c.host {
		h.hosts[c] = true
		logf(cfg, "RELAY: Host connected: %s", c.sessionID)

		// A freshly opened dashboard syncs immediately.
		h.deliver(c, h.snapshot())
		return
	}

	h.clients[c] = true
	logf(cfg, "RELAY: Client connected: %s", c.sessionID)

	h.broadcastHosts(ConnectionMessage{
		Type:      "clientConnect",
		SessionID: c.sessionID,
	})
}

func (h *Hub) handleUnregister(cfg *Config, c *Client) {
	if c.host {
		if _, ok := h.hosts[c]; ok {
			delete(h.hosts, c)
			close(c.send)
		}
		logf(cfg, "RELAY: Host disconnected: %s", c.sessionID)
		return
	}

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}

	// Connections that never completed a login have no registry entry;
	// a miss here is the expected race, not an error.
	removed, ok := h.session.Disconnect(c.sessionID)
	playerID := ""
	if ok {
		playerID = removed.ID
		logf(cfg, "RELAY: Player %q disconnected", removed.Name)
	}

	h.broadcastHosts(ConnectionMessage{
		Type:      "clientDisconnect",
		SessionID: c.sessionID,
		PlayerID:  playerID,
	})
}

func (h *Hub) handleClientFrame(cfg *Config, f frame) {
	c := f.client
	msg := f.msg

	switch msg.Type {
	case "login":
		if msg.PlayerID == "" || msg.Name == "" {
			logf(cfg, "RELAY: Rejected malformed login from %s", c.sessionID)
			return
		}
		h.handleLogin(cfg, c, msg)

	case "buzz":
		if h.session.Mode() != ModeBuzzer {
			logf(cfg, "RELAY: Dropped buzz outside buzzer mode from %s", c.sessionID)
			return
		}
		h.handleReact(cfg, c, msg, "")

	case "message":
		if h.session.Mode() != ModeAnswer || msg.Text == "" {
			logf(cfg, "RELAY: Dropped answer outside answer mode from %s", c.sessionID)
			return
		}
		h.handleReact(cfg, c, msg, msg.Text)
	}
}

func (h *Hub) handleLogin(cfg *Config, c *Client, msg ClientMessage) {
	c.playerID = msg.PlayerID

	p, rejoined := h.session.Login(c.sessionID, msg.PlayerID, msg.Name)
	if rejoined {
		logf(cfg, "GAMES: Player %q rejoined", p.Name)
	} else {
		logf(cfg, "GAMES: Player %q logged in", p.Name)
	}

	h.broadcastHosts(LoginMessage{
		Type:   "clientLogin",
		Player: *p,
	})

	// Resync contract: every login is answered with the current round
	// snapshot, so a rejoining participant resumes correct UI state. A
	// rejoining reactor also gets its ledger position back.
	update := UpdateClientMessage{
		Type:    "updateClient",
		Enabled: p.Enabled,
		Mode:    h.session.Mode(),
	}
	for _, reaction := range h.session.Reactions() {
		if reaction.PlayerID == p.ID {
			update.Position = reaction.Position
			break
		}
	}
	h.deliver(c, update)

	if msg.ID != 0 {
		h.deliver(c, AckMessage{Type: "ack", ID: msg.ID, Result: "login acknowledged"})
	}
}

type reactResult struct {
	Accepted bool `json:"accepted"`
	Position int  `json:"position,omitempty"`
}

func (h *Hub) handleReact(cfg *Config, c *Client, msg ClientMessage, text string) {
	p, reaction, ok := h.session.React(c.playerID, text)
	if !ok {
		// Already disabled or never registered; defined no-op either way.
		logf(cfg, "RELAY: Dropped reaction from %s", c.sessionID)
		if msg.ID != 0 {
			h.deliver(c, AckMessage{Type: "ack", ID: msg.ID, Result: reactResult{}})
		}
		return
	}

	logf(cfg, "GAMES: Player %q reacted at position %d", p.Name, reaction.Position)

	h.deliver(c, UpdateClientMessage{
		Type:     "updateClient",
		Enabled:  false,
		Mode:     h.session.Mode(),
		Position: reaction.Position,
	})

	h.broadcastHosts(ReactionMessage{
		Type:     "reaction",
		Reaction: *reaction,
	})

	if msg.ID != 0 {
		h.deliver(c, AckMessage{Type: "ack", ID: msg.ID, Result: reactResult{
			Accepted: true,
			Position: reaction.Position,
		}})
	}
}

func (h *Hub) handleHostFrame(cfg *Config, f frame) {
	c := f.client
	msg := f.msg

	switch msg.Type {
	case "newRound":
		mode, ok := parseMode(msg.Mode)
		if !ok {
			logf(cfg, "RELAY: Dropped newRound with unknown mode %q", msg.Mode)
			return
		}
		logf(cfg, "ROUND: New round in %s mode", mode)
		h.session.NewRound(mode)
		h.pushRoundState()

	case "resetRound":
		logf(cfg, "ROUND: Round reset")
		h.session.Reset()
		h.pushRoundState()

	case "reveal":
		if h.session.Mode() != ModeAnswer {
			return
		}
		logf(cfg, "ROUND: Answers revealed")
		// Display directive only; the ledger and enablement are untouched.
		h.broadcastClients(UpdateClientsMessage{
			Type:    "updateClients",
			Enabled: false,
		})

	case "queryClients":
		// Registry snapshot back to the asking host, plus a re-login
		// prompt to every participant so stragglers reconcile.
		if msg.ID != 0 {
			h.deliver(c, AckMessage{Type: "ack", ID: msg.ID, Result: h.snapshot()})
		} else {
			h.deliver(c, h.snapshot())
		}
		h.broadcastClients(QueryClientsMessage{Type: "queryClients"})

	case "getClient":
		p, ok := h.session.Lookup(msg.PlayerID)
		if !ok {
			logf(cfg, "RELAY: getClient miss for %q", msg.PlayerID)
			return
		}
		h.unicast(p, QueryClientsMessage{Type: "queryClients"})

	case "getServerAddress":
		if msg.ID == 0 {
			return
		}
		address := serverAddress()
		if address != "" {
			address = net.JoinHostPort(address, strconv.Itoa(cfg.port))
		}
		h.deliver(c, AckMessage{Type: "ack", ID: msg.ID, Result: address})
	}
}

// pushRoundState delivers the post-transition state to both audiences: each
// participant gets its own enablement plus the mode, the host gets the
// cleared snapshot.
func (h *Hub) pushRoundState() {
	mode := h.session.Mode()
	for c := range h.clients {
		enabled := true
		if p, ok := h.session.Lookup(c.playerID); ok {
			enabled = p.Enabled
		}
		h.deliver(c, UpdateClientMessage{
			Type:    "updateClient",
			Enabled: enabled,
			Mode:    mode,
		})
	}

	h.broadcastHosts(h.snapshot())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	return hex.EncodeToString(buf)
}

var clientTypes = map[string]bool{
	"login":   true,
	"buzz":    true,
	"message": true,
}

var hostTypes = map[string]bool{
	"newRound":         true,
	"resetRound":       true,
	"reveal":           true,
	"queryClients":     true,
	"getClient":        true,
	"getServerAddress": true,
}

func (c *Client) readPump(cfg *Config, h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		known := clientTypes[msg.Type]
		if c.host {
			known = hostTypes[msg.Type]
		}
		if !known {
			logf(cfg, "RELAY: Ignored %q frame from %s", msg.Type, c.sessionID)
			continue
		}

		h.frames <- frame{
			client: c,
			msg:    msg,
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

// WebSocket handler for one audience of the hub.
func serveWS(cfg *Config, h *Hub, host bool) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID := newSessionID()
		if sessionID == "" {
			http.Error(w, "unable to assign session id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:      conn,
			send:      make(chan any, 8),
			sessionID: sessionID,
			host:      host,
		}

		h.register <- client

		go client.writePump()
		client.readPump(cfg, h)
	}
}

// QR handler: generates a PNG QR code for the join URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// Participants join at the root, not at /qr.
		path := strings.TrimSuffix(r.URL.Path, "/qr")
		if path == "" {
			path = "/"
		}

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerBuzzer sets up routes so that:
//   - /            → participant page
//   - /host        → moderator dashboard
//   - /ws          → participant WebSocket
//   - /host/ws     → host WebSocket
//   - /qr          → PNG QR code for the join URL
func registerBuzzer(cfg *Config, mux *httprouter.Router) {
	hub := newHub(newSession())
	go hub.run(cfg)

	mux.GET(cfg.prefix+"/", getClientHandler(cfg))
	mux.GET(cfg.prefix+"/host", getHostHandler(cfg))

	mux.GET(cfg.prefix+"/assets/buzzer/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/buzzer/client.js", getClientJsHandler(cfg))
	mux.GET(cfg.prefix+"/assets/buzzer/host.js", getHostJsHandler(cfg))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub, false))
	mux.GET(cfg.prefix+"/host/ws", serveWS(cfg, hub, true))

	mux.GET(cfg.prefix+"/qr", qrHandler(cfg))
}
