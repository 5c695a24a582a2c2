package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"log"
	"sync"

	"Mercury/internal/event"
	"Mercury/internal/model"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

type clientBucket struct {
	sync.RWMutex
	users map[string]*Client
}

// Registry maps userKey to the single active connection for that user and is
// the transport half of the presence manager. It implements service.Sender.
// Policy: one handle per user, last connect wins.
type Registry struct {
	shards [shardCount]*clientBucket
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := 0; i < shardCount; i++ {
		r.shards[i] = &clientBucket{
			users: make(map[string]*Client),
		}
	}
	return r
}

func getShard(userKey string) uint32 {
	if userKey == "" {
		return 0
	}

	h := sha1.Sum([]byte(userKey))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

// Add registers the client for its user, returning the previous handle if
// one was displaced.
func (r *Registry) Add(c *Client) *Client {
	b := r.shards[getShard(c.userKey)]
	b.Lock()
	defer b.Unlock()

	prev := b.users[c.userKey]
	b.users[c.userKey] = c
	log.Printf("client %s registered for user %s", c.ID, c.userKey)
	return prev
}

// Remove drops the mapping only if this exact client still owns it, so a
// stale disconnect cannot evict a fresher connection.
func (r *Registry) Remove(c *Client) bool {
	b := r.shards[getShard(c.userKey)]
	b.Lock()
	defer b.Unlock()

	current, ok := b.users[c.userKey]
	if !ok || current != c {
		return false
	}
	delete(b.users, c.userKey)
	log.Printf("client %s removed for user %s", c.ID, c.userKey)
	return true
}

// Get returns the active client for a user, or nil.
func (r *Registry) Get(userKey string) *Client {
	b := r.shards[getShard(userKey)]
	b.RLock()
	defer b.RUnlock()
	return b.users[userKey]
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	n := 0
	for _, b := range r.shards {
		b.RLock()
		n += len(b.users)
		b.RUnlock()
	}
	return n
}

// Snapshot lists the connected clients for the monitor surface.
func (r *Registry) Snapshot() []model.ClientInfo {
	out := make([]model.ClientInfo, 0, r.Count())
	for _, b := range r.shards {
		b.RLock()
		for _, c := range b.users {
			out = append(out, model.ClientInfo{
				ClientID: c.ID,
				UserKey:  c.userKey,
				UserName: c.sender.UserName,
			})
		}
		b.RUnlock()
	}
	return out
}

// ToUser delivers an event to the user's active connection. Offline users
// are dropped silently; durable state lives in the repository, not here.
func (r *Registry) ToUser(userKey string, ev event.WsEvent) {
	c := r.Get(userKey)
	if c == nil {
		return
	}
	if !c.SafeSend(ev, sendTimeout) {
		log.Printf("dropped event %s for user %s: egress unavailable", ev.Event, userKey)
	}
}

// Broadcast delivers an event to every connected client.
func (r *Registry) Broadcast(ev event.WsEvent) {
	for _, b := range r.shards {
		b.RLock()
		clients := make([]*Client, 0, len(b.users))
		for _, c := range b.users {
			clients = append(clients, c)
		}
		b.RUnlock()

		// deliver without holding the bucket lock
		for _, c := range clients {
			if !c.SafeSend(ev, sendTimeout) {
				log.Printf("dropped broadcast %s for user %s", ev.Event, c.userKey)
			}
		}
	}
}

// CloseAll closes every registered connection (shutdown path).
func (r *Registry) CloseAll() {
	for _, b := range r.shards {
		b.RLock()
		for _, c := range b.users {
			c.Close()
		}
		b.RUnlock()
	}
}
