package chat

import (
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle state of a connection session.
type State int

const (
	// StateAnonymous is a connected session with no user bound yet. Anonymous
	// sessions may not join channels or send messages.
	StateAnonymous State = iota
	// StateAuthenticated has a user identity bound; the session may hold any
	// number of concurrent live channel subscriptions.
	StateAuthenticated
	// StateClosed is terminal, reached on disconnect from any prior state.
	StateClosed
)

// String renders the session state for logs.
func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultQueueSize is the default per-session outbound frame buffer.
const DefaultQueueSize = 64

// Session is the per-connection state machine. It owns the connection's
// outbound frame queue; enqueueing never blocks the broadcaster.
type Session struct {
	id string

	mu     sync.Mutex
	state  State
	userID int64
	live   map[int64]struct{}

	sendOnce sync.Once
	send     chan []byte
}

// NewSession creates an anonymous session with a fresh connection id.
func NewSession() *Session {
	return &Session{
		id:   uuid.NewString(),
		live: make(map[int64]struct{}),
		send: make(chan []byte, DefaultQueueSize),
	}
}

// ID returns the connection id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the bound user id, or 0 while anonymous.
func (s *Session) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Authenticate binds a user identity. Valid only from the anonymous state.
func (s *Session) Authenticate(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateAuthenticated:
		return ErrAlreadyAuthenticated
	}
	s.state = StateAuthenticated
	s.userID = userID
	return nil
}

// JoinedChannel reports whether the session currently holds a live
// subscription to the channel.
func (s *Session) JoinedChannel(channelID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[channelID]
	return ok
}

// Channels returns a snapshot of the session's live channel ids.
func (s *Session) Channels() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	return ids
}

func (s *Session) addChannel(channelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAuthenticated {
		s.live[channelID] = struct{}{}
	}
}

func (s *Session) removeChannel(channelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, channelID)
}

// Enqueue appends a frame to the outbound queue without blocking. A full
// queue drops the frame and reports ErrQueueFull; a closed session reports
// ErrSessionClosed. Either way the caller's fan-out continues.
func (s *Session) Enqueue(frame []byte) error {
	// The send and the close in Close are serialized by mu, so the channel
	// can never be closed mid-send.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	select {
	case s.send <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Outbound exposes the frame queue to the connection's write pump.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Close moves the session to its terminal state and closes the outbound
// queue. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	s.live = make(map[int64]struct{})
	s.sendOnce.Do(func() {
		close(s.send)
	})
}
