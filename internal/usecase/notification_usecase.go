package usecase

import (
	"context"
	stderrors "errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/repository"
	"helpdesk/internal/domain/service"
	"helpdesk/internal/infrastructure/metrics"
	"helpdesk/pkg/config"
	"helpdesk/pkg/errors"
	"helpdesk/pkg/logger"
)

const (
	pushBadge          = "/logo.png"
	supportFanoutLimit = 16
)

// NotificationUseCase decides, for every appended message, whether anyone has
// to be reached out of band, and schedules the auto-reply for customers that
// have not heard from support yet.
type NotificationUseCase struct {
	subscriptionRepo repository.SubscriptionRepository
	presence         service.PresenceTracker
	sender           service.PushSender
	scheduler        service.AutoReplyScheduler
	ledger           *LedgerUseCase
	autoReply        config.AutoReplyConfig
	metrics          *metrics.Metrics
}

// NewNotificationUseCase wires the dispatcher. sender and scheduler may be nil
// when push or auto-reply are disabled.
func NewNotificationUseCase(
	subscriptionRepo repository.SubscriptionRepository,
	presence service.PresenceTracker,
	sender service.PushSender,
	scheduler service.AutoReplyScheduler,
	ledger *LedgerUseCase,
	autoReply config.AutoReplyConfig,
	m *metrics.Metrics,
) *NotificationUseCase {
	return &NotificationUseCase{
		subscriptionRepo: subscriptionRepo,
		presence:         presence,
		sender:           sender,
		scheduler:        scheduler,
		ledger:           ledger,
		autoReply:        autoReply,
		metrics:          m,
	}
}

// Dispatch runs after a message has been appended and broadcast. Push failures
// never reach the caller.
func (uc *NotificationUseCase) Dispatch(ctx context.Context, id entity.ConversationID, message *entity.Message) {
	if message.SenderRole.IsSupport() {
		uc.notifyConversation(ctx, id, message)
	} else {
		uc.notifySupport(ctx, id, message)
	}

	if message.SenderRole == entity.RoleCustomer {
		uc.scheduleAutoReply(ctx, id)
	}
}

func (uc *NotificationUseCase) notifyConversation(ctx context.Context, id entity.ConversationID, message *entity.Message) {
	if uc.sender == nil {
		return
	}

	online, err := uc.presence.IsOnline(ctx, id)
	if err != nil {
		logger.Warn("Presence lookup failed for conversation %s: %v", id, err)
	}
	if online {
		logger.Debug("Conversation %s is online, skipping push", id)
		return
	}

	sub, err := uc.subscriptionRepo.GetPushSubscription(ctx, id)
	if err != nil {
		logger.Error("Failed to load push subscription for conversation %s: %v", id, err)
		return
	}
	if sub == nil {
		return
	}

	body := "Support sent an attachment..."
	if message.Text != "" {
		body = "Support: " + message.Text
	}

	notification := entity.PushNotification{
		Title: fmt.Sprintf("Helpdesk (Chat #%s)", id),
		Body:  body,
		URL:   conversationURL(id),
		Tag:   "chat-" + id.String(),
		Badge: pushBadge,
		Icon:  pushBadge,
	}

	if err := uc.sender.Send(ctx, sub, notification); err != nil {
		uc.metrics.PushDelivery("conversation", "failed")
		logger.Error("Push notification to conversation %s failed: %v", id, err)
		return
	}
	uc.metrics.PushDelivery("conversation", "sent")
}

func (uc *NotificationUseCase) notifySupport(ctx context.Context, id entity.ConversationID, message *entity.Message) {
	if uc.sender == nil {
		return
	}

	subs, err := uc.subscriptionRepo.ListSupportSubscriptions(ctx)
	if err != nil {
		logger.Error("Failed to list support subscriptions: %v", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	body := "User sent a file attachment..."
	if message.Text != "" {
		body = "User: " + message.Text
	}

	notification := entity.PushNotification{
		Title: fmt.Sprintf("New Customer Msg (#%s)", id),
		Body:  body,
		URL:   "/support",
		Tag:   "chat-" + id.String(),
		Badge: pushBadge,
	}

	logger.Debug("Sending push to %d support agents for conversation %s", len(subs), id)

	var g errgroup.Group
	g.SetLimit(supportFanoutLimit)
	for _, sub := range subs {
		g.Go(func() error {
			uc.sendToSupport(ctx, sub, notification)
			return nil
		})
	}
	g.Wait()
}

func (uc *NotificationUseCase) sendToSupport(ctx context.Context, sub *entity.PushSubscription, notification entity.PushNotification) {
	err := uc.sender.Send(ctx, sub, notification)
	switch {
	case err == nil:
		uc.metrics.PushDelivery("support", "sent")
	case stderrors.Is(err, service.ErrSubscriptionGone):
		uc.metrics.PushDelivery("support", "gone")
		logger.Info("Removing expired support subscription: %s", sub.Identity())
		if err := uc.subscriptionRepo.RemoveSupportSubscription(ctx, sub.Identity()); err != nil {
			logger.Error("Failed to remove support subscription %s: %v", sub.Identity(), err)
		}
	default:
		uc.metrics.PushDelivery("support", "failed")
		logger.Warn("Push notification to support agent failed: %v", err)
	}
}

func (uc *NotificationUseCase) scheduleAutoReply(ctx context.Context, id entity.ConversationID) {
	if !uc.autoReply.Enabled || uc.scheduler == nil {
		return
	}

	replied, err := uc.ledger.HasSupportReply(ctx, id)
	if err != nil {
		logger.Error("Auto-reply check failed for conversation %s: %v", id, err)
		return
	}
	if replied {
		return
	}

	if err := uc.scheduler.ScheduleAutoReply(ctx, id, uc.autoReply.Delay); err != nil {
		logger.Error("Failed to schedule auto-reply for conversation %s: %v", id, err)
		return
	}
	uc.metrics.AutoReply("scheduled")
}

// Subscribe stores the push subscription of the conversation's external party.
func (uc *NotificationUseCase) Subscribe(ctx context.Context, id entity.ConversationID, sub *entity.PushSubscription) error {
	if sub.Identity() == "" {
		return errors.BadRequest("Subscription endpoint or token is required", nil)
	}
	if err := uc.subscriptionRepo.SavePushSubscription(ctx, id, sub); err != nil {
		return errors.Internal("Failed to save subscription", err)
	}
	return nil
}

// SubscribeSupport adds a support agent's device; duplicates are ignored.
func (uc *NotificationUseCase) SubscribeSupport(ctx context.Context, sub *entity.PushSubscription) error {
	if sub.Identity() == "" {
		return errors.BadRequest("Subscription endpoint or token is required", nil)
	}
	if err := uc.subscriptionRepo.AddSupportSubscription(ctx, sub); err != nil {
		return errors.Internal("Failed to save support subscription", err)
	}
	return nil
}

// SendTestPush delivers a fixed notification to the conversation's stored subscription.
func (uc *NotificationUseCase) SendTestPush(ctx context.Context, id entity.ConversationID) error {
	if uc.sender == nil {
		return errors.Unavailable("Push notifications are disabled", nil)
	}

	sub, err := uc.subscriptionRepo.GetPushSubscription(ctx, id)
	if err != nil {
		return errors.Internal("Failed to load subscription", err)
	}
	if sub == nil {
		return errors.NotFound("Push subscription", nil)
	}

	notification := entity.PushNotification{
		Title: "Helpdesk",
		Body:  "Notifications are active for this conversation.",
		URL:   conversationURL(id),
		Tag:   "system-status",
		Badge: pushBadge,
	}
	if err := uc.sender.Send(ctx, sub, notification); err != nil {
		return errors.Internal("Failed to send test notification", err)
	}
	return nil
}

func conversationURL(id entity.ConversationID) string {
	if mobile, ok := id.Mobile(); ok {
		return "/employee-chat?mobile=" + mobile
	}
	return "/userchat?complaintId=" + id.String()
}
