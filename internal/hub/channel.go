package hub

import "sync"

// Channels is the set of per-group broadcast domains. Each group has its
// own subscriber set behind its own mutex, so publishing to one group
// never contends with another. Channel structs are never reaped: groups
// have unbounded lifetime and an empty subscriber map is two words.
type Channels struct {
	mu      sync.RWMutex
	byGroup map[string]*channel

	// onDead runs the full disconnect cleanup for a connection whose
	// write failed mid-publish. Must be idempotent.
	onDead func(*Conn)
}

type channel struct {
	mu   sync.Mutex
	subs map[*Conn]struct{}
}

func NewChannels(onDead func(*Conn)) *Channels {
	return &Channels{byGroup: make(map[string]*channel), onDead: onDead}
}

func (cs *Channels) get(groupID string) *channel {
	cs.mu.RLock()
	ch := cs.byGroup[groupID]
	cs.mu.RUnlock()
	if ch != nil {
		return ch
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if ch = cs.byGroup[groupID]; ch == nil {
		ch = &channel{subs: make(map[*Conn]struct{})}
		cs.byGroup[groupID] = ch
	}
	return ch
}

// Subscribe adds conn to the group's subscriber set. Subscribing twice
// is a no-op. Membership authorization happens in the presence layer
// before this is called.
func (cs *Channels) Subscribe(groupID string, conn *Conn) {
	ch := cs.get(groupID)
	ch.mu.Lock()
	ch.subs[conn] = struct{}{}
	ch.mu.Unlock()
}

// Publish delivers payload to every subscriber of groupID except origin
// and returns the number of successful deliveries. Each delivery is
// independent: a failed write closes that subscriber and triggers its
// disconnect cleanup without affecting the rest. No retries; the next
// location update supersedes a missed one.
func (cs *Channels) Publish(groupID string, payload []byte, origin *Conn) int {
	cs.mu.RLock()
	ch := cs.byGroup[groupID]
	cs.mu.RUnlock()
	if ch == nil {
		return 0
	}

	ch.mu.Lock()
	targets := make([]*Conn, 0, len(ch.subs))
	for c := range ch.subs {
		if c != origin {
			targets = append(targets, c)
		}
	}
	ch.mu.Unlock()

	delivered := 0
	for _, c := range targets {
		if err := c.Writer.Write(payload); err != nil {
			_ = c.Writer.Close()
			if cs.onDead != nil {
				cs.onDead(c)
			}
			continue
		}
		delivered++
	}
	return delivered
}

// UnsubscribeAll removes conn from every channel it appears in. Part of
// disconnect cleanup; idempotent and safe under concurrent publish.
func (cs *Channels) UnsubscribeAll(conn *Conn) {
	cs.mu.RLock()
	channels := make([]*channel, 0, len(cs.byGroup))
	for _, ch := range cs.byGroup {
		channels = append(channels, ch)
	}
	cs.mu.RUnlock()

	for _, ch := range channels {
		ch.mu.Lock()
		delete(ch.subs, conn)
		ch.mu.Unlock()
	}
}

// Subscribed reports whether conn is currently in groupID's subscriber
// set.
func (cs *Channels) Subscribed(groupID string, conn *Conn) bool {
	cs.mu.RLock()
	ch := cs.byGroup[groupID]
	cs.mu.RUnlock()
	if ch == nil {
		return false
	}
	ch.mu.Lock()
	_, ok := ch.subs[conn]
	ch.mu.Unlock()
	return ok
}
