// Package session keeps the per-chat conversation state.  Sessions are
// process-local, typed per flow and discarded after an idle period.
package session

import (
	"context"
	"sync"
	"time"
)

// Flow names the state machine a session is in.
type Flow string

const (
	FlowNone  Flow = ""
	FlowBuyer Flow = "buyer"
	FlowAdmin Flow = "admin"
)

// State is a state identifier of one flow's machine.  The empty state means
// "no conversation in progress".
type State string

// BuyerDraft is the scratch space of the buyer flow.
type BuyerDraft struct {
	TempLogin  string // login typed before the password prompt
	OrgID      int64
	EventID    int64
	ProductID  int64
	Name       string
	Email      string
	PromoCode  string // applied code, empty when none
	FinalPrice int
	PayRef     string
}

// AdminDraft is the scratch space of the admin flow.
type AdminDraft struct {
	OrgID          int64
	EventID        int64
	BlacklistOrgID int64 // list being edited; 0 is the global list
	BlacklistUser  int64
	EventName      string
	ProductName    string
	ProductPrice   int
	ProductLimit   int
	PromoCode      string
	PromoPercent   int
	TargetUserID   int64  // ownership transfer candidate
	Audience       string // broadcast audience
	BroadcastOrgID int64  // organization of the broadcast; 0 is global
	ViewAll        bool   // super admin browsing every organization
	TicketID       string // ticket shown by the last check
}

// Session is the conversation state of one chat.
type Session struct {
	ChatID int64
	Flow   Flow
	State  State
	Buyer  BuyerDraft
	Admin  AdminDraft
}

// Reset discards the scratch space and leaves the conversation.
func (s *Session) Reset() {
	*s = Session{ChatID: s.ChatID}
}

// Enter switches to flow at state with fresh scratch space.
func (s *Session) Enter(flow Flow, state State) {
	s.Reset()
	s.Flow, s.State = flow, state
}

type entry struct {
	mu      sync.Mutex
	sess    Session
	touched time.Time
	dead    bool
}

// Store maps chat ids to sessions.  Acquire serialises all updates of one
// chat; different chats proceed in parallel.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[int64]*entry
}

// NewStore returns a store that discards sessions idle for longer than ttl.
// A ttl of 0 keeps sessions forever.
func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, now: time.Now, items: make(map[int64]*entry)}
}

// Acquire locks the session of chatID and returns it with a release func
// that must be called exactly once.  An expired session is returned reset.
func (s *Store) Acquire(chatID int64) (*Session, func()) {
	for {
		s.mu.Lock()
		e, ok := s.items[chatID]
		if !ok {
			e = &entry{sess: Session{ChatID: chatID}, touched: s.now()}
			s.items[chatID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.dead {
			// Swept while we waited; retry with a fresh entry.
			e.mu.Unlock()
			continue
		}
		if s.expired(e) {
			e.sess.Reset()
		}
		return &e.sess, func() {
			e.touched = s.now()
			e.mu.Unlock()
		}
	}
}

// Delete drops the session of chatID.
func (s *Store) Delete(chatID int64) {
	s.mu.Lock()
	e, ok := s.items[chatID]
	delete(s.items, chatID)
	s.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.dead = true
		e.mu.Unlock()
	}
}

// Sweep removes idle sessions that are not currently in use and returns how
// many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.items {
		if !e.mu.TryLock() {
			continue
		}
		if s.expired(e) {
			e.dead = true
			delete(s.items, id)
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(e *entry) bool {
	return s.ttl > 0 && s.now().Sub(e.touched) > s.ttl
}
