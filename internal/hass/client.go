package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mward29/triviapanel/internal/game"
)

// ErrNotConnected is returned by CallService while no host session is up.
var ErrNotConnected = errors.New("not connected to host")

// stableSessionAge is how long a session must hold before its drop counts as
// a fresh failure and the reconnect backoff starts over.
const stableSessionAge = time.Minute

// Config holds host connection settings.
type Config struct {
	// URL is the host websocket endpoint, e.g. ws://host:8123/api/websocket.
	URL string
	// Token is the long-lived access token used in the auth handshake.
	Token string
	// Domain is the service domain commands are issued against.
	Domain string
	// EntityPrefix filters which entities enter the snapshot.
	EntityPrefix string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	ReconnectWait    time.Duration
	MaxReconnectWait time.Duration
}

// DefaultConfig returns default host connection settings.
func DefaultConfig() Config {
	return Config{
		Domain:           "home_trivia",
		EntityPrefix:     "sensor.home_trivia_",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
		ReconnectWait:    2 * time.Second,
		MaxReconnectWait: 30 * time.Second,
	}
}

// Client maintains the websocket session with the host: it authenticates,
// subscribes to state changes, keeps the current trivia snapshot and
// correlates service-call results back to their callers.
type Client struct {
	cfg    Config
	clock  clockwork.Clock
	dialer *websocket.Dialer

	onSnapshot func(game.Snapshot)

	nextID atomic.Int64

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[int64]chan callResult
	entities map[string]game.EntityState
	// results captures the raw payload of the one request (get_states)
	// whose result body matters, keyed by resultID.
	results  chan json.RawMessage
	resultID int64

	// writeMu serializes writers; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

type callResult struct {
	success bool
	errMsg  string
}

func NewClient(cfg Config, clock clockwork.Clock) *Client {
	return &Client{
		cfg:     cfg,
		clock:   clock,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		pending: make(map[int64]chan callResult),
	}
}

// OnSnapshot sets the callback invoked with a fresh immutable snapshot
// after the initial state fetch and after every relevant state change.
// Must be set before Run.
func (c *Client) OnSnapshot(fn func(game.Snapshot)) {
	c.onSnapshot = fn
}

// Run dials the host and services the session until ctx is cancelled,
// reconnecting with capped backoff on any drop.
func (c *Client) Run(ctx context.Context) error {
	wait := c.cfg.ReconnectWait
	for {
		start := c.clock.Now()
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if c.clock.Since(start) > stableSessionAge {
			wait = c.cfg.ReconnectWait
		}

		log.Warn().
			Err(err).
			Dur("retry_in", wait).
			Str("url", c.cfg.URL).
			Msg("host session ended, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(wait):
		}
		wait *= 2
		if wait > c.cfg.MaxReconnectWait {
			wait = c.cfg.MaxReconnectWait
		}
	}
}

// session runs one full connection lifecycle: dial, auth handshake, event
// subscription, initial state fetch, then the read loop until failure.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial host: %w", err)
	}
	defer conn.Close()

	if err := c.handshake(conn); err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.entities = make(map[string]game.EntityState)
	c.mu.Unlock()
	defer c.teardown(conn)

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(conn) }()

	if err := c.subscribe(ctx, conn); err != nil {
		return err
	}
	if err := c.fetchStates(ctx, conn); err != nil {
		return err
	}

	log.Info().Str("url", c.cfg.URL).Msg("host session established")

	ticker := c.clock.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			<-readErr
			return nil
		case err := <-readErr:
			return err
		case <-ticker.Chan():
			if err := c.writeControl(conn, websocket.PingMessage); err != nil {
				return fmt.Errorf("ping host: %w", err)
			}
		}
	}
}

// handshake performs the auth_required/auth/auth_ok exchange.
func (c *Client) handshake(conn *websocket.Conn) error {
	var hello authMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read auth challenge: %w", err)
	}
	if hello.Type != msgTypeAuthRequired {
		return fmt.Errorf("unexpected handshake message %q", hello.Type)
	}

	if err := conn.WriteJSON(authMessage{Type: msgTypeAuth, AccessToken: c.cfg.Token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	var reply authMessage
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	switch reply.Type {
	case msgTypeAuthOK:
		return nil
	case msgTypeAuthInvalid:
		return fmt.Errorf("host rejected auth: %s", reply.Message)
	default:
		return fmt.Errorf("unexpected auth reply %q", reply.Type)
	}
}

// subscribe registers for state_changed events.
func (c *Client) subscribe(ctx context.Context, conn *websocket.Conn) error {
	id, ch := c.register()
	msg := subscribeMessage{ID: id, Type: msgTypeSubscribe, EventType: eventStateChanged}
	if err := c.write(conn, msg); err != nil {
		c.unregister(id)
		return fmt.Errorf("subscribe events: %w", err)
	}
	return c.await(ctx, id, ch)
}

// fetchStates pulls the full entity list and seeds the snapshot.
func (c *Client) fetchStates(ctx context.Context, conn *websocket.Conn) error {
	id := c.nextID.Add(1)
	ch := make(chan callResult, 1)
	raw := make(chan json.RawMessage, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.results = raw
	c.resultID = id
	c.mu.Unlock()

	if err := c.write(conn, getStatesMessage{ID: id, Type: msgTypeGetStates}); err != nil {
		c.unregister(id)
		return fmt.Errorf("get states: %w", err)
	}
	if err := c.await(ctx, id, ch); err != nil {
		return err
	}

	var payload json.RawMessage
	select {
	case payload = <-raw:
	default:
	}

	var records []stateRecord
	if payload != nil {
		if err := json.Unmarshal(payload, &records); err != nil {
			return fmt.Errorf("decode states: %w", err)
		}
	}

	c.mu.Lock()
	for _, rec := range records {
		if strings.HasPrefix(rec.EntityID, c.cfg.EntityPrefix) {
			c.entities[rec.EntityID] = game.EntityState{State: rec.State, Attributes: rec.Attributes}
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snap)
	return nil
}

// CallService issues one service call and resolves when the host reports
// the result. A failed or unresolved call simply returns an error; retry is
// the caller's decision.
func (c *Client) CallService(ctx context.Context, service string, data map[string]any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	id, ch := c.register()
	msg := callServiceMessage{
		ID:          id,
		Type:        msgTypeCallService,
		Domain:      c.cfg.Domain,
		Service:     service,
		ServiceData: data,
	}
	if err := c.write(conn, msg); err != nil {
		c.unregister(id)
		return fmt.Errorf("call %s: %w", service, err)
	}
	return c.await(ctx, id, ch)
}

// readLoop decodes host messages until the connection fails.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read host message: %w", err)
		}

		switch msg.Type {
		case msgTypeResult:
			c.resolve(msg)
		case msgTypeEvent:
			c.handleEvent(msg.Event)
		default:
			log.Debug().Str("type", msg.Type).Msg("ignoring host message")
		}
	}
}

// handleEvent applies a state_changed event to the entity map and emits a
// fresh snapshot when a trivia entity moved.
func (c *Client) handleEvent(ev *eventMessage) {
	if ev == nil || ev.EventType != eventStateChanged {
		return
	}
	var data stateChangedData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		log.Warn().Err(err).Msg("malformed state_changed event")
		return
	}
	if !strings.HasPrefix(data.EntityID, c.cfg.EntityPrefix) {
		return
	}

	c.mu.Lock()
	if data.NewState == nil {
		delete(c.entities, data.EntityID)
	} else {
		c.entities[data.EntityID] = game.EntityState{
			State:      data.NewState.State,
			Attributes: data.NewState.Attributes,
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snap)
}

// resolve routes a result message to the in-flight call waiting on it.
func (c *Client) resolve(msg serverMessage) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	if c.results != nil && msg.ID == c.resultID {
		c.results <- msg.Result
		c.results = nil
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	res := callResult{success: msg.Success}
	if msg.Error != nil {
		res.errMsg = msg.Error.Message
	}
	ch <- res
}

// snapshotLocked copies the entity map into an immutable snapshot. Caller
// holds c.mu.
func (c *Client) snapshotLocked() game.Snapshot {
	snap := make(game.Snapshot, len(c.entities))
	for id, e := range c.entities {
		snap[id] = e
	}
	return snap
}

func (c *Client) emit(snap game.Snapshot) {
	if c.onSnapshot != nil {
		c.onSnapshot(snap)
	}
}

// register allocates a message id with a buffered result channel.
func (c *Client) register() (int64, chan callResult) {
	id := c.nextID.Add(1)
	ch := make(chan callResult, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return id, ch
}

func (c *Client) unregister(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// await blocks until the host answers id, the context ends, or the session
// tears down.
func (c *Client) await(ctx context.Context, id int64, ch chan callResult) error {
	select {
	case <-ctx.Done():
		c.unregister(id)
		return ctx.Err()
	case res := <-ch:
		if !res.success {
			if res.errMsg == "" {
				res.errMsg = "call failed"
			}
			return fmt.Errorf("host: %s", res.errMsg)
		}
		return nil
	}
}

// write serializes one outbound message with a write deadline. Gorilla
// connections allow a single concurrent writer, hence the lock.
func (c *Client) write(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteJSON(v)
}

func (c *Client) writeControl(conn *websocket.Conn, messageType int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(messageType, nil)
}

// teardown fails every in-flight call and clears the session state.
func (c *Client) teardown(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- callResult{success: false, errMsg: "connection lost"}
	}
	c.results = nil
}
