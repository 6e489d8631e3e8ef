package service

import (
	"context"
	"time"

	"helpdesk/internal/domain/entity"
)

// AutoReplyHandler is invoked when a scheduled auto-reply fires.
type AutoReplyHandler func(ctx context.Context, id entity.ConversationID) error

// AutoReplyScheduler defers auto-reply jobs. Start registers the handler and
// must be called before jobs can fire; Stop cancels pending jobs.
type AutoReplyScheduler interface {
	Start(handler AutoReplyHandler) error
	ScheduleAutoReply(ctx context.Context, id entity.ConversationID, delay time.Duration) error
	Stop()
}
