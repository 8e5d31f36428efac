package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	defaultSendBuf = 64
)

// Client is a single WebSocket connection.
type Client struct {
	id     string
	router *Router
	conn   *websocket.Conn
	logger *slog.Logger

	// accountID is the authenticated account, 0 for anonymous connections.
	accountID int64

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ Channel = (*Client)(nil)

func newClient(router *Router, conn *websocket.Conn, accountID int64, sendBuf int, logger *slog.Logger) *Client {
	if sendBuf <= 0 {
		sendBuf = defaultSendBuf
	}
	id := uuid.NewString()
	return &Client{
		id:        id,
		router:    router,
		conn:      conn,
		logger:    logger.With("channel_id", id),
		accountID: accountID,
		send:      make(chan []byte, sendBuf),
		done:      make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues data for the write pump. It never blocks: a full buffer or a
// closed client drops the message.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump handles client events until the connection fails or ctx ends.
func (c *Client) readPump(ctx context.Context) {
	defer c.close()

	for {
		var event Event
		if err := wsjson.Read(ctx, c.conn, &event); err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.logger.Debug("ws client disconnected")
			} else if ctx.Err() == nil {
				c.logger.Debug("ws read error", "error", err)
			}
			return
		}
		c.handleEvent(&event)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Debug("ws write error", "error", err)
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.logger.Debug("ws ping error", "error", err)
				return
			}

		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeJoinRoom:
		accountID, ok := c.roomFrom(event)
		if !ok {
			return
		}
		if c.accountID != 0 && accountID != c.accountID {
			c.sendError("FORBIDDEN", "cannot join another account's room")
			return
		}
		c.router.Subscribe(accountID, c)
		c.reply(EventTypeRoomJoined, RoomPayload{AccountID: accountID})
		c.logger.Debug("ws joined room", "account_id", accountID)

	case EventTypeLeaveRoom:
		accountID, ok := c.roomFrom(event)
		if !ok {
			return
		}
		c.router.Leave(accountID, c)
		c.reply(EventTypeRoomLeft, RoomPayload{AccountID: accountID})

	case EventTypePing:
		c.reply(EventTypePong, nil)

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) roomFrom(event *Event) (int64, bool) {
	var p RoomPayload
	if len(event.Payload) == 0 || json.Unmarshal(event.Payload, &p) != nil {
		c.sendError("INVALID_PAYLOAD", "invalid "+event.Type+" payload")
		return 0, false
	}
	accountID, err := p.Account()
	if err != nil {
		c.sendError("INVALID_PAYLOAD", err.Error())
		return 0, false
	}
	return accountID, true
}

func (c *Client) reply(eventType string, payload any) {
	data, err := encode(eventType, payload)
	if err != nil {
		return
	}
	c.Send(data)
}

func (c *Client) sendError(code, message string) {
	c.reply(EventTypeError, ErrorPayload{Code: code, Message: message})
}
