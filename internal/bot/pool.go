package bot

import (
	"context"
	"sync"
)

// Handler processes one interaction.
type Handler interface {
	Handle(ctx context.Context, in Inbound)
}

// Pool runs a Handler on a fixed set of workers.  Interactions are sharded
// by chat id, so one chat is always served by the same worker and its
// updates are handled in arrival order while different chats proceed in
// parallel.
type Pool struct {
	h      Handler
	queues []chan Inbound
}

// NewPool creates workers goroutine queues of buffer slots each.
func NewPool(h Handler, workers, buffer int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{h: h, queues: make([]chan Inbound, workers)}
	for i := range p.queues {
		p.queues[i] = make(chan Inbound, buffer)
	}
	return p
}

// Submit enqueues in without blocking.  It reports false when the chat's
// queue is full.
func (p *Pool) Submit(in Inbound) bool {
	q := p.queues[shard(in.ChatID, len(p.queues))]
	select {
	case q <- in:
		return true
	default:
		return false
	}
}

// Run serves the queues until ctx is cancelled.  Interactions already being
// handled finish before Run returns.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, q := range p.queues {
		wg.Add(1)
		go func(q chan Inbound) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case in := <-q:
					p.h.Handle(ctx, in)
				}
			}
		}(q)
	}
	wg.Wait()
}

// shard maps a chat to a worker.  Group chats have negative ids.
func shard(chatID int64, n int) int {
	return int(uint64(chatID) % uint64(n))
}
