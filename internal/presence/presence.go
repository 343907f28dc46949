// Package presence turns connection lifecycle events into registry and
// broadcast actions. Each live connection owns exactly one Session,
// driven by that connection's reader goroutine; the shared state it
// touches (registry, channels, store) does its own synchronization.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"flock-server/internal/hub"
	"flock-server/internal/model"
	"flock-server/internal/store"
)

var (
	// ErrNotIdentified is returned for a subscribe or publish received
	// before a successful identify.
	ErrNotIdentified = errors.New("connection not identified")

	// ErrNotSubscribed is returned for a publish into a group the
	// connection holds no subscription for.
	ErrNotSubscribed = errors.New("connection not subscribed to group")

	// ErrForbidden is returned when a subscribe targets a group the
	// identified user is not a member of.
	ErrForbidden = errors.New("not a member of group")
)

// Membership is the slice of the store the session consults. It is
// re-checked on every subscribe; the session never caches authorization.
type Membership interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	RecordPosition(ctx context.Context, userID string, lat, lng float64, at int64) error
}

var _ Membership = (*store.Store)(nil)

// Broadcast is the wire frame fanned out to a group's subscribers. The
// group is implicit: each recipient got it on a channel it subscribed to.
type Broadcast struct {
	Type   string  `json:"type"`
	UserID string  `json:"userId"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// Session is the per-connection protocol state machine:
// unidentified -> identified -> subscribed to zero or more groups.
type Session struct {
	conn       *hub.Conn
	registry   *hub.Registry
	channels   *hub.Channels
	membership Membership

	userID string
	subs   map[string]struct{}

	now func() time.Time
}

func NewSession(conn *hub.Conn, registry *hub.Registry, channels *hub.Channels, membership Membership) *Session {
	return &Session{
		conn:       conn,
		registry:   registry,
		channels:   channels,
		membership: membership,
		subs:       make(map[string]struct{}),
		now:        time.Now,
	}
}

// Identify binds the connection to userID and registers it for fan-out.
// A second identify replaces the binding rather than erroring, so a
// client reusing a socket after an app-level reset just re-announces
// itself. Subscriptions authorized under the previous identity are
// dropped.
func (s *Session) Identify(userID string) {
	if s.userID != "" && s.userID != userID {
		s.channels.UnsubscribeAll(s.conn)
		s.subs = make(map[string]struct{})
	}
	s.userID = userID
	s.registry.Register(userID, s.conn)
	slog.Debug("connection identified", "sid", s.conn.SID, "userId", userID)
}

// Subscribe tunes the connection into groupID's channel. The membership
// store is consulted at call time, never from a cached answer, so a
// subscribe that races a join sees the store's current truth.
func (s *Session) Subscribe(ctx context.Context, groupID string) error {
	if s.userID == "" {
		return ErrNotIdentified
	}
	ok, err := s.membership.IsMember(ctx, groupID, s.userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	s.channels.Subscribe(groupID, s.conn)
	s.subs[groupID] = struct{}{}
	slog.Debug("connection subscribed", "sid", s.conn.SID, "userId", s.userID, "groupId", groupID)
	return nil
}

// Publish fans a location event out to the group's other subscribers.
// The event's user and group come from the session's own state; nothing
// in the client payload can spoof an identity or an unjoined group. The
// sender is excluded from delivery. Returns the delivery count.
func (s *Session) Publish(ctx context.Context, groupID string, lat, lng float64) (int, error) {
	if s.userID == "" {
		return 0, ErrNotIdentified
	}
	if _, ok := s.subs[groupID]; !ok {
		return 0, ErrNotSubscribed
	}

	ev := model.LocationEvent{
		UserID:     s.userID,
		GroupID:    groupID,
		Lat:        lat,
		Lng:        lng,
		ReceivedAt: s.now().UnixMilli(),
	}
	payload, err := json.Marshal(Broadcast{Type: "location", UserID: ev.UserID, Lat: ev.Lat, Lng: ev.Lng})
	if err != nil {
		return 0, err
	}
	delivered := s.channels.Publish(ev.GroupID, payload, s.conn)

	// Roster display wants the last known position; losing one write is
	// harmless, the next event overwrites it.
	if err := s.membership.RecordPosition(ctx, ev.UserID, ev.Lat, ev.Lng, ev.ReceivedAt); err != nil {
		slog.Warn("record position failed", "userId", ev.UserID, "error", err)
	}
	return delivered, nil
}

// Close tears the connection out of every shared structure. Triggered
// unconditionally by transport close, graceful or not, and safe to call
// more than once.
func (s *Session) Close() {
	s.registry.Deregister(s.conn)
	s.channels.UnsubscribeAll(s.conn)
	if s.userID != "" {
		slog.Debug("connection closed", "sid", s.conn.SID, "userId", s.userID)
	}
}
