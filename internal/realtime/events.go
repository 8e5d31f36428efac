package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event types - Client → Server
const (
	EventTypeJoinRoom  = "join_room"
	EventTypeLeaveRoom = "leave_room"
	EventTypePing      = "ping"
)

// Event types - Server → Client. Lifecycle events use the names in pkg/domain.
const (
	EventTypeRoomJoined = "room_joined"
	EventTypeRoomLeft   = "room_left"
	EventTypePong       = "pong"
	EventTypeError      = "error"
)

// Event is the envelope for every WebSocket message.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// NewEvent wraps payload in an envelope stamped with the current time.
func NewEvent(eventType string, payload any) (*Event, error) {
	evt := &Event{Type: eventType, Timestamp: time.Now().Unix()}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		evt.Payload = b
	}
	return evt, nil
}

func encode(eventType string, payload any) ([]byte, error) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(evt)
}

// RoomPayload names an account room, either as {"accountId": 7} or in the
// legacy {"room": "user_7"} form.
type RoomPayload struct {
	AccountID int64  `json:"accountId,omitempty"`
	Room      string `json:"room,omitempty"`
}

const legacyRoomPrefix = "user_"

// Account returns the account ID the payload refers to.
func (p RoomPayload) Account() (int64, error) {
	if p.AccountID > 0 {
		return p.AccountID, nil
	}
	if rest, ok := strings.CutPrefix(p.Room, legacyRoomPrefix); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("invalid room %q", p.Room)
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
