package voltgo

import (
	"container/list"
	"sync"

	"github.com/hashicorp/go-metrics"
)

// DefaultMessageCacheLimit is the message cache capacity used when no
// WithMessageCacheLimit option is given.
const DefaultMessageCacheLimit = 5000

// Store is the session-scoped entity cache. Users, channels, and servers are
// unbounded; messages are bounded and evicted strictly FIFO by insertion
// order, independent of reads.
//
// The store is mutated only by the decoder on the read loop; handlers read it
// concurrently. Cached entities are immutable snapshots replaced wholesale on
// update, so readers always observe either the prior or the new value, never
// a torn one.
type Store struct {
	mu       sync.RWMutex
	capacity int

	self        *User
	users       map[EntityID]*User
	usersByName map[string]EntityID
	channels    map[EntityID]*Channel
	servers     map[EntityID]*Server

	messages map[EntityID]*Message
	order    *list.List // message ids, oldest at front
	index    map[EntityID]*list.Element
}

// NewStore creates a store with the given message capacity. A non-positive
// capacity falls back to DefaultMessageCacheLimit. Capacity is fixed for the
// store's lifetime.
func NewStore(messageLimit int) *Store {
	if messageLimit <= 0 {
		messageLimit = DefaultMessageCacheLimit
	}

	return &Store{
		capacity:    messageLimit,
		users:       make(map[EntityID]*User),
		usersByName: make(map[string]EntityID),
		channels:    make(map[EntityID]*Channel),
		servers:     make(map[EntityID]*Server),
		messages:    make(map[EntityID]*Message),
		order:       list.New(),
		index:       make(map[EntityID]*list.Element),
	}
}

// SetSelf records the session's own identity and caches it as a user.
func (s *Store) SetSelf(user *User) {
	if user == nil {
		return
	}

	s.mu.Lock()
	s.self = user
	s.putUserLocked(user)
	s.mu.Unlock()
}

// Self returns the session's own identity when known.
func (s *Store) Self() (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.self, s.self != nil
}

// PutUser inserts or replaces a user snapshot.
func (s *Store) PutUser(user *User) {
	if user == nil || user.ID == "" {
		return
	}

	s.mu.Lock()
	s.putUserLocked(user)
	if s.self != nil && s.self.ID == user.ID {
		s.self = user
	}
	s.mu.Unlock()
}

func (s *Store) putUserLocked(user *User) {
	if prior, exists := s.users[user.ID]; exists && prior.Username != user.Username {
		if s.usersByName[prior.Username] == user.ID {
			delete(s.usersByName, prior.Username)
		}
	}
	s.users[user.ID] = user
	if user.Username != "" {
		s.usersByName[user.Username] = user.ID
	}
}

// User returns the cached user for id. Absence is an expected outcome during
// event races, not an error.
func (s *Store) User(id EntityID) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]

	return user, exists
}

// UserByName returns the cached user with the exact username. The service
// namespace is assumed unique; the latest put for a name wins.
func (s *Store) UserByName(name string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.usersByName[name]
	if !exists {
		return nil, false
	}
	user, exists := s.users[id]

	return user, exists
}

// PutChannel inserts or replaces a channel snapshot.
func (s *Store) PutChannel(channel *Channel) {
	if channel == nil || channel.ID == "" {
		return
	}

	s.mu.Lock()
	s.channels[channel.ID] = channel
	s.mu.Unlock()
}

// Channel returns the cached channel for id.
func (s *Store) Channel(id EntityID) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channel, exists := s.channels[id]

	return channel, exists
}

// RemoveChannel deletes a channel entry. Removing a missing id is a no-op.
func (s *Store) RemoveChannel(id EntityID) {
	s.mu.Lock()
	delete(s.channels, id)
	s.mu.Unlock()
}

// PutServer inserts or replaces a server snapshot.
func (s *Store) PutServer(server *Server) {
	if server == nil || server.ID == "" {
		return
	}

	s.mu.Lock()
	s.servers[server.ID] = server
	s.mu.Unlock()
}

// Server returns the cached server for id.
func (s *Store) Server(id EntityID) (*Server, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	server, exists := s.servers[id]

	return server, exists
}

// PutMessage inserts or replaces a message snapshot. Inserting a new id past
// capacity evicts the oldest-inserted entry; replacing an existing id keeps
// its original insertion position and does not consume capacity.
func (s *Store) PutMessage(message *Message) {
	if message == nil || message.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[message.ID]; exists {
		s.messages[message.ID] = message
		return
	}

	s.messages[message.ID] = message
	s.index[message.ID] = s.order.PushBack(message.ID)

	for s.order.Len() > s.capacity {
		oldest := s.order.Front()
		oldestID := oldest.Value.(EntityID)
		s.order.Remove(oldest)
		delete(s.index, oldestID)
		delete(s.messages, oldestID)
		metrics.IncrCounter(MetricCacheMessageEvictedCount, 1)
	}
}

// Message returns the cached message for id.
func (s *Store) Message(id EntityID) (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	message, exists := s.messages[id]

	return message, exists
}

// RemoveMessage deletes a message entry. Removing a missing id is a no-op.
func (s *Store) RemoveMessage(id EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.index[id]
	if !exists {
		return
	}
	s.order.Remove(element)
	delete(s.index, id)
	delete(s.messages, id)
}

// MessageCount returns the number of cached messages.
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.order.Len()
}
