package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/service"
	"helpdesk/pkg/logger"
)

const TypeAutoReply = "conversation:auto_reply"

type autoReplyPayload struct {
	ConversationID entity.ConversationID `json:"conversation_id"`
}

// AsynqScheduler defers auto-reply jobs through Redis so they survive restarts
// and fire on exactly one instance.
type AsynqScheduler struct {
	client *asynq.Client
	server *asynq.Server
}

func NewAsynqScheduler(redisURL string, concurrency int) (*AsynqScheduler, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"chat": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("Asynq task %s failed: %v", task.Type(), err)
		}),
	})

	return &AsynqScheduler{
		client: asynq.NewClient(opt),
		server: server,
	}, nil
}

func (s *AsynqScheduler) Start(handler service.AutoReplyHandler) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAutoReply, func(ctx context.Context, task *asynq.Task) error {
		var payload autoReplyPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return handler(ctx, payload.ConversationID)
	})
	return s.server.Start(mux)
}

// ScheduleAutoReply enqueues at most one pending job per conversation.
func (s *AsynqScheduler) ScheduleAutoReply(ctx context.Context, id entity.ConversationID, delay time.Duration) error {
	payload, err := json.Marshal(autoReplyPayload{ConversationID: id})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeAutoReply, payload)
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.Queue("chat"),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
		asynq.TaskID("auto-reply:"+id.String()),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func (s *AsynqScheduler) Stop() {
	s.server.Shutdown()
	if err := s.client.Close(); err != nil {
		logger.Warn("Asynq client close: %v", err)
	}
}
