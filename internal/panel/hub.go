package panel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mward29/triviapanel/internal/game"
	"github.com/mward29/triviapanel/internal/prefs"
	"github.com/mward29/triviapanel/internal/reconcile"
)

// ConnectionConfig holds per-display websocket settings.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default display connection settings.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Hub manages the websocket connections of attached displays. It is the
// controller's render sink: repaints, timer patches and score flashes fan
// out to every display, and interaction events from displays are routed
// back into the controller.
type Hub struct {
	controller *reconcile.Controller
	prefs      *prefs.Store
	tabletMode bool

	upgrader websocket.Upgrader
	config   ConnectionConfig

	mu    sync.RWMutex
	conns map[*displayConn]bool
}

// displayConn is one attached display. send is never closed; done signals
// shutdown so broadcasts racing a disconnect cannot hit a closed channel.
type displayConn struct {
	id        string
	displayID string
	userID    string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	hub       *Hub

	// focused tracks this display's focused controls so the interaction
	// guard can be cleaned up when the display disconnects mid-edit.
	focusedMu sync.Mutex
	focused   map[string]struct{}
}

func NewHub(controller *reconcile.Controller, store *prefs.Store, config ConnectionConfig, tabletMode bool) *Hub {
	return &Hub{
		controller: controller,
		prefs:      store,
		tabletMode: tabletMode,
		config:     config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		conns: make(map[*displayConn]bool),
	}
}

// ServeWS upgrades an HTTP request to a display connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade display connection")
		return
	}

	c := &displayConn{
		id:      uuid.New().String(),
		conn:    ws,
		send:    make(chan []byte, 64),
		done:    make(chan struct{}),
		hub:     h,
		focused: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()

	log.Info().Str("connection_id", c.id).Msg("display connected")

	go c.writePump()
	go c.readPump()
}

// ConnectionCount returns the number of attached displays.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Repaint implements reconcile.Sink. Each display gets the view with its
// own admin flag resolved.
func (h *Hub) Repaint(snap game.Snapshot) {
	vm := BuildViewModel(snap, h.controller.Forms(), h.tabletMode)

	h.mu.RLock()
	conns := make([]*displayConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.sendView(vm)
	}
}

// PatchTimer implements reconcile.Sink.
func (h *Hub) PatchTimer(patch reconcile.TimerPatch) {
	h.broadcast(frame{Type: frameTimerPatch, TimerPatch: &patch})
}

// FlashScore implements reconcile.Sink.
func (h *Hub) FlashScore(team, points int) {
	h.broadcast(frame{Type: frameScoreFlash, ScoreFlash: &scoreFlashFrame{Team: team, Points: points}})
}

// broadcast marshals a frame once and queues it to every display.
func (h *Hub) broadcast(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		log.Error().Err(err).Str("frame", f.Type).Msg("failed to marshal frame")
		return
	}

	h.mu.RLock()
	conns := make([]*displayConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.queue(data)
	}
}

func (h *Hub) unregister(c *displayConn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	close(c.done)
	h.mu.Unlock()

	// Release any guard entries the display left behind mid-edit.
	c.focusedMu.Lock()
	for control := range c.focused {
		h.controller.Guard().Blur(control)
	}
	c.focused = make(map[string]struct{})
	c.focusedMu.Unlock()

	log.Info().
		Str("connection_id", c.id).
		Str("display_id", c.displayID).
		Msg("display disconnected")
}

// handleMessage routes one inbound display message.
func (h *Hub) handleMessage(c *displayConn, raw []byte) {
	var msg displayMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Str("connection_id", c.id).Msg("malformed display message")
		return
	}

	switch msg.Type {
	case msgHello:
		h.handleHello(c, msg)
	case msgFocus:
		c.trackFocus(msg.Control, true)
		h.controller.Guard().Focus(c.controlKey(msg.Control))
	case msgBlur:
		c.trackFocus(msg.Control, false)
		h.controller.Guard().Blur(c.controlKey(msg.Control))
	case msgEdit:
		h.handleEdit(c, msg)
	case msgAnswer:
		h.controller.SubmitAnswer(msg.Team, msg.Value)
	case msgAction:
		h.handleAction(c, msg)
	case msgLanguage:
		h.handleLanguage(c, msg)
	default:
		log.Debug().Str("type", msg.Type).Str("connection_id", c.id).Msg("ignoring display message")
	}
}

// handleHello identifies the display and answers with the current view and
// its stored language preference.
func (h *Hub) handleHello(c *displayConn, msg displayMessage) {
	c.displayID = msg.DisplayID
	c.userID = msg.UserID

	lang := ""
	if h.prefs != nil && c.displayID != "" {
		v, err := h.prefs.Language(c.displayID)
		switch {
		case err == nil:
			lang = v
		case errors.Is(err, prefs.ErrNoPreference):
		default:
			log.Warn().Err(err).Str("display_id", c.displayID).Msg("failed to load language preference")
		}
	}
	if lang != "" {
		c.queueFrame(frame{Type: msgLanguage, Language: lang})
	}

	c.sendView(BuildViewModel(h.controller.Snapshot(), h.controller.Forms(), h.tabletMode))
}

func (h *Hub) handleEdit(c *displayConn, msg displayMessage) {
	switch msg.Field {
	case editDifficulty:
		h.controller.EditDifficulty(msg.Value)
	case editTeamCount:
		if n, err := strconv.Atoi(msg.Value); err == nil {
			h.controller.EditTeamCount(n)
		}
	case editTeamName:
		h.controller.EditTeamName(msg.Team, msg.Value)
	case editTeamUser:
		h.controller.EditTeamUser(msg.Team, msg.Value)
	case editTimerLength:
		if n, err := strconv.Atoi(msg.Value); err == nil {
			h.controller.EditTimerLength(n)
		}
	case editParticipating:
		h.controller.ToggleParticipating(msg.Team, msg.Value == "true")
	default:
		log.Warn().Str("field", msg.Field).Str("connection_id", c.id).Msg("unknown edit field")
	}
}

// handleAction runs a game-flow command, admin-gated on team 1 ownership.
func (h *Hub) handleAction(c *displayConn, msg displayMessage) {
	admin := h.controller.Snapshot().AdminUserID()
	if admin != "" && c.userID != admin {
		log.Warn().
			Str("connection_id", c.id).
			Str("user_id", c.userID).
			Str("action", msg.Value).
			Msg("non-admin action refused")
		return
	}

	switch msg.Value {
	case actionStart:
		h.controller.StartGame()
	case actionStop:
		h.controller.StopGame()
	case actionReset:
		h.controller.ResetGame()
	case actionNext:
		h.controller.NextQuestion()
	default:
		log.Warn().Str("action", msg.Value).Str("connection_id", c.id).Msg("unknown action")
	}
}

func (h *Hub) handleLanguage(c *displayConn, msg displayMessage) {
	if h.prefs == nil || c.displayID == "" {
		return
	}
	if err := h.prefs.SetLanguage(c.displayID, msg.Value); err != nil {
		log.Warn().Err(err).Str("display_id", c.displayID).Msg("failed to store language preference")
	}
}

// controlKey scopes a control ID to this connection so two displays
// focusing the same control do not collide in the guard.
func (c *displayConn) controlKey(control string) string {
	return c.id + "/" + control
}

func (c *displayConn) trackFocus(control string, focused bool) {
	c.focusedMu.Lock()
	defer c.focusedMu.Unlock()
	if focused {
		c.focused[c.controlKey(control)] = struct{}{}
	} else {
		delete(c.focused, c.controlKey(control))
	}
}

// sendView resolves the per-display admin flag and queues the view frame.
func (c *displayConn) sendView(vm ViewModel) {
	vm.IsAdmin = vm.AdminUserID != "" && c.userID == vm.AdminUserID
	c.queueFrame(frame{Type: frameView, View: &vm})
}

func (c *displayConn) queueFrame(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		log.Error().Err(err).Str("frame", f.Type).Msg("failed to marshal frame")
		return
	}
	c.queue(data)
}

// queue hands a marshaled frame to the write pump, dropping the connection
// if its buffer is full. A frame for a connection already shutting down is
// silently dropped.
func (c *displayConn) queue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Warn().Str("connection_id", c.id).Msg("display send buffer full, closing connection")
		c.hub.unregister(c)
		c.conn.Close()
	}
}

// writePump sends queued frames and pings to the display.
func (c *displayConn) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write to display")
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads interaction events from the display.
func (c *displayConn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("unexpected display close")
			}
			return
		}
		c.hub.handleMessage(c, message)
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}
