// Package realtime pushes lifecycle events to connected clients, either to
// every open connection or to the connections of one account.
package realtime

import (
	"log/slog"
	"sync"
)

// Channel is one open client connection. Send must not block; it reports
// false when the message was dropped.
type Channel interface {
	ID() string
	Send(data []byte) bool
}

// Router tracks open channels and the account rooms they joined.
type Router struct {
	logger *slog.Logger

	mu      sync.RWMutex
	all     map[Channel]map[int64]struct{} // channel → rooms joined
	members map[int64]map[Channel]struct{} // room → channels
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:  logger,
		all:     make(map[Channel]map[int64]struct{}),
		members: make(map[int64]map[Channel]struct{}),
	}
}

// Attach registers ch so it receives broadcasts.
func (r *Router) Attach(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachLocked(ch)
}

func (r *Router) attachLocked(ch Channel) {
	if _, ok := r.all[ch]; !ok {
		r.all[ch] = make(map[int64]struct{})
	}
}

// Subscribe adds ch to accountID's room, attaching it first if needed. A
// channel may be in several rooms and an account may have many channels.
func (r *Router) Subscribe(accountID int64, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attachLocked(ch)
	r.all[ch][accountID] = struct{}{}
	room, ok := r.members[accountID]
	if !ok {
		room = make(map[Channel]struct{})
		r.members[accountID] = room
	}
	room[ch] = struct{}{}
}

// Leave removes ch from one room. The channel stays attached.
func (r *Router) Leave(accountID int64, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rooms, ok := r.all[ch]; ok {
		delete(rooms, accountID)
	}
	r.removeMemberLocked(accountID, ch)
}

// Unsubscribe forgets ch entirely. Unknown channels are ignored.
func (r *Router) Unsubscribe(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.all[ch]
	if !ok {
		return
	}
	for accountID := range rooms {
		r.removeMemberLocked(accountID, ch)
	}
	delete(r.all, ch)
}

func (r *Router) removeMemberLocked(accountID int64, ch Channel) {
	room, ok := r.members[accountID]
	if !ok {
		return
	}
	delete(room, ch)
	if len(room) == 0 {
		delete(r.members, accountID)
	}
}

// Broadcast delivers the event to every open channel.
func (r *Router) Broadcast(event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		r.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}

	r.mu.RLock()
	targets := make([]Channel, 0, len(r.all))
	for ch := range r.all {
		targets = append(targets, ch)
	}
	r.mu.RUnlock()

	r.deliver(event, targets, data)
}

// Notify delivers the event only to channels in accountID's room. With no
// such channel the event is dropped.
func (r *Router) Notify(accountID int64, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		r.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}

	r.mu.RLock()
	room := r.members[accountID]
	targets := make([]Channel, 0, len(room))
	for ch := range room {
		targets = append(targets, ch)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		r.logger.Debug("no open channel for account, event dropped", "event", event, "account_id", accountID)
		return
	}
	r.deliver(event, targets, data)
}

func (r *Router) deliver(event string, targets []Channel, data []byte) {
	for _, ch := range targets {
		if !ch.Send(data) {
			r.logger.Warn("dropped event for slow or closed channel", "event", event, "channel_id", ch.ID())
		}
	}
}

// Connections returns the number of attached channels.
func (r *Router) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// RoomSize returns the number of channels in accountID's room.
func (r *Router) RoomSize(accountID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[accountID])
}
