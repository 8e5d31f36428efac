package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
)

// TokenValidator resolves an access token to an account ID.
type TokenValidator interface {
	AccountIDFromToken(token string) (int64, error)
}

// HandlerConfig controls who may connect.
type HandlerConfig struct {
	// RequireToken rejects upgrades without a valid access token.
	RequireToken bool
	// AllowedOrigins are host patterns for the Origin check. Empty allows any origin.
	AllowedOrigins []string
	SendBuffer     int
}

// Handler upgrades HTTP requests to WebSocket connections attached to a Router.
type Handler struct {
	router *Router
	tokens TokenValidator
	cfg    HandlerConfig
	logger *slog.Logger
}

func NewHandler(router *Router, tokens TokenValidator, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{router: router, tokens: tokens, cfg: cfg, logger: logger}
}

// ServeHTTP authenticates via ?token= (browsers cannot set headers on a
// WebSocket handshake) or a Bearer header. A valid token joins the
// account's room immediately.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var accountID int64
	if token := tokenFrom(r); token != "" {
		id, err := h.tokens.AccountIDFromToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		accountID = id
	} else if h.cfg.RequireToken {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.cfg.AllowedOrigins,
		InsecureSkipVerify: len(h.cfg.AllowedOrigins) == 0,
	})
	if err != nil {
		h.logger.Warn("ws accept failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := newClient(h.router, conn, accountID, h.cfg.SendBuffer, h.logger)
	if accountID != 0 {
		h.router.Subscribe(accountID, client)
		client.reply(EventTypeRoomJoined, RoomPayload{AccountID: accountID})
	} else {
		h.router.Attach(client)
	}
	h.logger.Info("ws connected", "channel_id", client.ID(), "account_id", accountID, "connections", h.router.Connections())

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		h.router.Unsubscribe(client)
		conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Info("ws disconnected", "channel_id", client.ID(), "connections", h.router.Connections())
	}()

	go func() {
		client.writePump(ctx)
		cancel()
	}()
	client.readPump(ctx)
}

func tokenFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return ""
}
