package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrPendingNotFound is returned when a payment reference is unknown,
// expired or already consumed by another approval.
var ErrPendingNotFound = errors.New("pending approval not found")

// PendingApproval links a payment reference quoted to the buyer with the
// pending ticket it pays for.  It is consulted by exactly one approval
// interaction and removed when consumed.
type PendingApproval struct {
	Ref       string    `json:"ref"`
	TicketID  string    `json:"ticket_id"`
	BuyerID   int64     `json:"buyer_id"`
	BuyerName string    `json:"buyer_name"`
	ProductID int64     `json:"product_id"`
	EventID   int64     `json:"event_id"`
	OrgID     int64     `json:"org_id"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingStore keeps pending approvals.  Take removes the record atomically
// so two approvers racing on the same reference cannot both win.
type PendingStore interface {
	Put(ctx context.Context, p PendingApproval) error
	Peek(ctx context.Context, ref string) (PendingApproval, error)
	Take(ctx context.Context, ref string) (PendingApproval, error)
}

// RedisPending stores approvals as JSON strings under prefix+ref.  A zero
// TTL keeps them until consumed.
type RedisPending struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPending returns a Redis backed store.
func NewRedisPending(rdb *redis.Client, ttl time.Duration) *RedisPending {
	return &RedisPending{rdb: rdb, prefix: "ticketbot:pending:", ttl: ttl}
}

func (s *RedisPending) Put(ctx context.Context, p PendingApproval) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+p.Ref, body, s.ttl).Err()
}

func (s *RedisPending) Peek(ctx context.Context, ref string) (PendingApproval, error) {
	return decodePending(s.rdb.Get(ctx, s.prefix+ref).Bytes())
}

// Take reads and deletes the record with a single GETDEL.
func (s *RedisPending) Take(ctx context.Context, ref string) (PendingApproval, error) {
	return decodePending(s.rdb.GetDel(ctx, s.prefix+ref).Bytes())
}

func decodePending(body []byte, err error) (PendingApproval, error) {
	var p PendingApproval
	if errors.Is(err, redis.Nil) {
		return p, ErrPendingNotFound
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, err
	}
	return p, nil
}

// MemoryPending is the process-local fallback used when Redis is not
// available.
type MemoryPending struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memoryPendingItem
}

type memoryPendingItem struct {
	p       PendingApproval
	expires time.Time
}

// NewMemoryPending returns an in-memory store.
func NewMemoryPending(ttl time.Duration) *MemoryPending {
	return &MemoryPending{ttl: ttl, now: time.Now, items: make(map[string]memoryPendingItem)}
}

func (s *MemoryPending) Put(_ context.Context, p PendingApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := memoryPendingItem{p: p}
	if s.ttl > 0 {
		it.expires = s.now().Add(s.ttl)
	}
	s.items[p.Ref] = it
	return nil
}

func (s *MemoryPending) Peek(_ context.Context, ref string) (PendingApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(ref)
}

func (s *MemoryPending) Take(_ context.Context, ref string) (PendingApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(ref)
	delete(s.items, ref)
	return p, err
}

// lookup must be called with mu held.
func (s *MemoryPending) lookup(ref string) (PendingApproval, error) {
	it, ok := s.items[ref]
	if !ok {
		return PendingApproval{}, ErrPendingNotFound
	}
	if !it.expires.IsZero() && s.now().After(it.expires) {
		delete(s.items, ref)
		return PendingApproval{}, ErrPendingNotFound
	}
	return it.p, nil
}
