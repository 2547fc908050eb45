// Package realtime keeps viewers of an organization's status page in sync by
// pushing full snapshots to every connection in the organization's room.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/ctxlog"
	"github.com/bissquit/statusroom/internal/pkg/lockmap"
)

// EventUpdateServices is the event carrying an organization snapshot.
const EventUpdateServices = "update-services"

// ErrHubClosed is returned by Join after Close.
var ErrHubClosed = errors.New("realtime hub closed")

// Message is an event pushed to a connection.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn is a connection that can receive messages.
// Send must not block on the network.
type Conn interface {
	ID() string
	Send(msg Message) error
}

// SnapshotSource reads the current snapshot of an organization.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, organizationID string) (*domain.Snapshot, error)
}

// SnapshotCache stores the last published snapshot per organization.
// Get returns nil without error on a miss. Set must not replace a snapshot
// with an older Version; Invalidate turns the next Get into a miss.
type SnapshotCache interface {
	Get(ctx context.Context, organizationID string) (*domain.Snapshot, error)
	Set(ctx context.Context, snapshot *domain.Snapshot) error
	Invalidate(ctx context.Context, organizationID string) error
}

// Hub tracks room membership and broadcasts snapshots.
//
// Publishes and joins for one organization are serialized, so every
// connection sees that organization's snapshots in commit order.
type Hub struct {
	source SnapshotSource
	cache  SnapshotCache

	mu      sync.RWMutex
	rooms   map[string]map[string]Conn // organization ID -> conn ID -> conn
	members map[string]string          // conn ID -> organization ID
	closed  bool
	done    chan struct{}

	order *lockmap.Map
}

// NewHub creates a hub. cache may be nil.
func NewHub(source SnapshotSource, cache SnapshotCache) *Hub {
	return &Hub{
		source:  source,
		cache:   cache,
		rooms:   make(map[string]map[string]Conn),
		members: make(map[string]string),
		done:    make(chan struct{}),
		order:   lockmap.New(),
	}
}

// Join moves conn into the organization's room, leaving any prior room, and
// sends it the current snapshot. On failure conn is in no room.
func (h *Hub) Join(ctx context.Context, conn Conn, organizationID string) error {
	unlock := h.order.Lock(organizationID)
	defer unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.removeLocked(conn.ID())
	room, ok := h.rooms[organizationID]
	if !ok {
		room = make(map[string]Conn)
		h.rooms[organizationID] = room
	}
	room[conn.ID()] = conn
	h.members[conn.ID()] = organizationID
	h.recordRoomsLocked()
	h.mu.Unlock()

	snapshot, err := h.current(ctx, organizationID)
	if err != nil {
		h.Leave(conn)
		return fmt.Errorf("load snapshot: %w", err)
	}

	if err := conn.Send(snapshotMessage(snapshot)); err != nil {
		h.drop(ctx, conn, "send_failed")
		return fmt.Errorf("send snapshot: %w", err)
	}
	return nil
}

// Leave removes conn from its room. Leaving twice is a no-op.
func (h *Hub) Leave(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(conn.ID())
	h.recordRoomsLocked()
}

// Room returns the organization ID conn is joined to.
func (h *Hub) Room(conn Conn) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	organizationID, ok := h.members[conn.ID()]
	return organizationID, ok
}

// Publish reads the organization's snapshot from the store and sends it to
// every connection in its room. Connections failing to accept it are removed
// from the room; the rest still receive it.
func (h *Hub) Publish(ctx context.Context, organizationID string) error {
	unlock := h.order.Lock(organizationID)
	defer unlock()

	start := time.Now()

	snapshot, err := h.source.GetSnapshot(ctx, organizationID)
	if err != nil {
		// The cached entry predates the mutation being published.
		h.invalidate(ctx, organizationID)
		recordPublish(publishResultError, time.Since(start))
		return fmt.Errorf("get snapshot: %w", err)
	}
	h.store(ctx, snapshot)

	msg := snapshotMessage(snapshot)
	for _, conn := range h.roomConns(organizationID) {
		if err := conn.Send(msg); err != nil {
			h.drop(ctx, conn, "send_failed")
		}
	}

	recordPublish(publishResultSuccess, time.Since(start))
	return nil
}

// Done is closed when the hub shuts down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Close empties every room and rejects further joins.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.rooms = make(map[string]map[string]Conn)
	h.members = make(map[string]string)
	h.recordRoomsLocked()
	close(h.done)
}

func (h *Hub) current(ctx context.Context, organizationID string) (*domain.Snapshot, error) {
	if h.cache != nil {
		snapshot, err := h.cache.Get(ctx, organizationID)
		if err != nil {
			ctxlog.FromContext(ctx).Warn("failed to read cached snapshot",
				"organization_id", organizationID,
				"error", err,
			)
		}
		if snapshot != nil {
			return snapshot, nil
		}
	}

	snapshot, err := h.source.GetSnapshot(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	h.store(ctx, snapshot)
	return snapshot, nil
}

// store caches snapshot. A failed write invalidates the entry so joins fall
// back to the store instead of an older snapshot.
func (h *Hub) store(ctx context.Context, snapshot *domain.Snapshot) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, snapshot); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to cache snapshot",
			"organization_id", snapshot.OrganizationID,
			"error", err,
		)
		h.invalidate(ctx, snapshot.OrganizationID)
	}
}

func (h *Hub) invalidate(ctx context.Context, organizationID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, organizationID); err != nil {
		ctxlog.FromContext(ctx).Error("failed to invalidate cached snapshot",
			"organization_id", organizationID,
			"error", err,
		)
	}
}

func (h *Hub) roomConns(organizationID string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[organizationID]
	conns := make([]Conn, 0, len(room))
	for _, conn := range room {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) drop(ctx context.Context, conn Conn, reason string) {
	h.Leave(conn)
	recordDropped(reason)
	ctxlog.FromContext(ctx).Debug("connection dropped from room",
		"conn_id", conn.ID(),
		"reason", reason,
	)
}

func (h *Hub) removeLocked(connID string) {
	organizationID, ok := h.members[connID]
	if !ok {
		return
	}
	delete(h.members, connID)

	room := h.rooms[organizationID]
	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, organizationID)
	}
}

func (h *Hub) recordRoomsLocked() {
	roomsActive.Set(float64(len(h.rooms)))
}

func snapshotMessage(snapshot *domain.Snapshot) Message {
	return Message{Event: EventUpdateServices, Data: snapshot}
}
