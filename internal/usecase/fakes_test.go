package usecase

import (
	"context"
	"sync"
	"time"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/service"
)

type publishedReceipt struct {
	id     entity.ConversationID
	status entity.MessageStatus
	role   entity.Role
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []*entity.Message
	receipts []publishedReceipt
	statuses map[string]entity.ConversationStatus
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{statuses: make(map[string]entity.ConversationStatus)}
}

func (p *fakePublisher) PublishNewMessage(message *entity.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *fakePublisher) PublishReceipts(id entity.ConversationID, status entity.MessageStatus, role entity.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts = append(p.receipts, publishedReceipt{id: id, status: status, role: role})
}

func (p *fakePublisher) PublishConversationStatus(id entity.ConversationID, status entity.ConversationStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[id.String()] = status
}

type sentPush struct {
	sub          *entity.PushSubscription
	notification entity.PushNotification
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentPush
	// gone lists subscription identities that answer ErrSubscriptionGone.
	gone map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{gone: make(map[string]bool)}
}

func (s *fakeSender) Send(ctx context.Context, sub *entity.PushSubscription, notification entity.PushNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone[sub.Identity()] {
		return service.ErrSubscriptionGone
	}
	s.sent = append(s.sent, sentPush{sub: sub, notification: notification})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type scheduledJob struct {
	id    entity.ConversationID
	delay time.Duration
}

// fakeScheduler records jobs; tests fire them explicitly.
type fakeScheduler struct {
	mu      sync.Mutex
	handler service.AutoReplyHandler
	jobs    []scheduledJob
}

func (s *fakeScheduler) Start(handler service.AutoReplyHandler) error {
	s.handler = handler
	return nil
}

func (s *fakeScheduler) ScheduleAutoReply(ctx context.Context, id entity.ConversationID, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, scheduledJob{id: id, delay: delay})
	return nil
}

func (s *fakeScheduler) Stop() {}

func (s *fakeScheduler) fireAll(ctx context.Context) error {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = nil
	s.mu.Unlock()

	for _, job := range jobs {
		if err := s.handler(ctx, job.id); err != nil {
			return err
		}
	}
	return nil
}
