package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned when an action is already running in the session.
var ErrBusy = errors.New("another action is already running in this session")

// Session is the state of one user session.
type Session struct {
	ID        string
	CreatedAt time.Time
	History   *History

	mu   sync.Mutex
	busy bool
}

func New() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		History:   &History{},
	}
}

// Begin marks the session busy. The returned release function clears the
// flag; it is safe to call more than once and must be deferred by callers so
// that every exit path releases the session.
func (s *Session) Begin() (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return nil, ErrBusy
	}
	s.busy = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		})
	}, nil
}

// Busy reports whether an action is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}
