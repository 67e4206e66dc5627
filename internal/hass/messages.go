package hass

import "encoding/json"

// Wire types for the host's JSON websocket API. Every request after the
// auth handshake carries a monotonically increasing id; the host answers
// with a result message bearing the same id.

const (
	msgTypeAuthRequired = "auth_required"
	msgTypeAuth         = "auth"
	msgTypeAuthOK       = "auth_ok"
	msgTypeAuthInvalid  = "auth_invalid"
	msgTypeResult       = "result"
	msgTypeEvent        = "event"
	msgTypeGetStates    = "get_states"
	msgTypeSubscribe    = "subscribe_events"
	msgTypeCallService  = "call_service"

	eventStateChanged = "state_changed"
)

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
	Message     string `json:"message,omitempty"`
}

type subscribeMessage struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

type getStatesMessage struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type callServiceMessage struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	ServiceData map[string]any `json:"service_data,omitempty"`
}

// serverMessage is the superset envelope of everything the host sends after
// the handshake.
type serverMessage struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *serverError    `json:"error"`
	Event   *eventMessage   `json:"event"`
}

type serverError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type eventMessage struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// stateChangedData is the payload of a state_changed event. NewState is
// null when an entity is removed.
type stateChangedData struct {
	EntityID string       `json:"entity_id"`
	NewState *stateRecord `json:"new_state"`
}

// stateRecord is one entity state as the host serializes it, both in
// state_changed events and in the get_states result array.
type stateRecord struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}
