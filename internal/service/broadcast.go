package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SendFunc delivers one text message to a chat.
type SendFunc func(ctx context.Context, chatID int64, text string) error

// Broadcaster sends one text to many chats, pausing between messages to
// stay under the transport's rate limits.
type Broadcaster struct {
	Send  SendFunc
	Delay time.Duration
	Log   *zap.Logger
}

// Broadcast delivers text to every id and returns how many sends succeeded.
// Failed deliveries (blocked bot, deleted chat) are logged and skipped.  It
// stops early when ctx is cancelled.
func (b *Broadcaster) Broadcast(ctx context.Context, ids []int64, text string) int {
	sent := 0
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := b.Send(ctx, id, text); err != nil {
			b.Log.Debug("broadcast delivery failed", zap.Int64("chat_id", id), zap.Error(err))
		} else {
			sent++
		}
		if b.Delay > 0 && i < len(ids)-1 {
			if !sleepCtx(ctx, b.Delay) {
				break
			}
		}
	}
	return sent
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
