package hub

import "sync"

// Writer is the transport-side write half of a connection. Write must be
// safe to call from multiple goroutines and Close must be idempotent.
type Writer interface {
	Write(message []byte) error
	Close() error
}

// Conn is one live transport connection. SID is the transport-assigned
// session token; identity and subscriptions are tracked by the Registry
// and Channels, not on the struct, so concurrent publishers never read
// fields the owning goroutine mutates.
type Conn struct {
	SID    string
	Writer Writer
}

// Registry maps user identities to their live connections. A user may
// hold several connections at once (multiple devices); registering a new
// one never evicts the others.
type Registry struct {
	mu     sync.Mutex
	byUser map[string]map[*Conn]struct{}
	byConn map[*Conn]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[*Conn]struct{}),
		byConn: make(map[*Conn]string),
	}
}

// Register associates conn with userID. If conn was already registered
// under a different user the old association is replaced, which is how a
// re-identify on a live socket is handled.
func (r *Registry) Register(userID string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[conn]; ok {
		r.dropLocked(prev, conn)
	}
	set := r.byUser[userID]
	if set == nil {
		set = make(map[*Conn]struct{})
		r.byUser[userID] = set
	}
	set[conn] = struct{}{}
	r.byConn[conn] = userID
}

// Deregister removes conn from every index. Safe to call for a
// connection that was never registered or was already deregistered.
func (r *Registry) Deregister(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[conn]
	if !ok {
		return
	}
	delete(r.byConn, conn)
	r.dropLocked(userID, conn)
}

func (r *Registry) dropLocked(userID string, conn *Conn) {
	set := r.byUser[userID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.byUser, userID)
	}
}

// ConnectionsFor returns the live connections for userID. Empty for an
// offline user.
func (r *Registry) ConnectionsFor(userID string) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byUser[userID]
	conns := make([]*Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}
