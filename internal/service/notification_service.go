package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
)

// NotificationChannel is where a notice is sent.
type NotificationChannel string

const (
	ChannelEmail   NotificationChannel = "email"
	ChannelWebhook NotificationChannel = "webhook"
)

// Notice is one outbound notification derived from a domain event.
type Notice struct {
	Channel   NotificationChannel
	Target    string
	Subject   string
	EventType events.EventType
	TicketID  string
}

// NotificationService turns committed domain events into customer and operator notices.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	deliver    func(context.Context, Notice)
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
	n.deliver = n.logNotice
	return n
}

// WithDelivery replaces the delivery function. Used by tests and alternative transports.
func (n *NotificationService) WithDelivery(fn func(context.Context, Notice)) *NotificationService {
	if fn != nil {
		n.deliver = fn
	}
	return n
}

// Delivery returns the current delivery function.
func (n *NotificationService) Delivery() func(context.Context, Notice) {
	return n.deliver
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStateChanged, n.handleTicketStateChanged)
	n.dispatcher.Subscribe(events.EventTicketDispatched, n.handleTicketDispatched)
	n.dispatcher.Subscribe(events.EventScheduleHoldResolved, n.handleHoldResolved)
	n.dispatcher.Subscribe(events.EventAutonomyChanged, n.handleAutonomyChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.email(ctx, event, "Service request received")
	n.webhook(ctx, event, "ticket created")
	return nil
}

func (n *NotificationService) handleTicketStateChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStateChangedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("TicketStateChanged",
		zap.String("ticket_id", event.TicketID),
		zap.String("from_state", string(payload.FromState)),
		zap.String("to_state", string(payload.ToState)))
	switch payload.ToState {
	case domain.TicketStatePendingCustomerConfirmation:
		n.email(ctx, event, "Please confirm your appointment")
	case domain.TicketStateScheduled:
		n.email(ctx, event, "Your appointment is scheduled")
	case domain.TicketStateCompletedPendingVerification:
		n.email(ctx, event, "Work completed")
	}
	n.webhook(ctx, event, "state "+string(payload.ToState))
	return nil
}

func (n *NotificationService) handleTicketDispatched(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketDispatched", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.email(ctx, event, "A technician is on the way")
	n.webhook(ctx, event, "technician dispatched")
	return nil
}

func (n *NotificationService) handleHoldResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("ScheduleHoldResolved", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.webhook(ctx, event, "schedule hold resolved")
	return nil
}

func (n *NotificationService) handleAutonomyChanged(ctx context.Context, event events.Event) error {
	n.logger.Warn("AutonomyChanged", zap.String("correlation_id", event.CorrelationID), zap.Any("payload", event.Payload))
	n.webhook(ctx, event, "autonomy control changed")
	return nil
}

func (n *NotificationService) email(ctx context.Context, event events.Event, subject string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.deliver(ctx, Notice{Channel: ChannelEmail, Target: n.cfg.EmailFrom, Subject: subject, EventType: event.Type, TicketID: event.TicketID})
}

func (n *NotificationService) webhook(ctx context.Context, event events.Event, subject string) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.deliver(ctx, Notice{Channel: ChannelWebhook, Target: n.cfg.WebhookURL, Subject: subject, EventType: event.Type, TicketID: event.TicketID})
}

func (n *NotificationService) logNotice(_ context.Context, notice Notice) {
	n.logger.Debug("notification stub",
		zap.String("channel", string(notice.Channel)),
		zap.String("target", notice.Target),
		zap.String("subject", notice.Subject),
		zap.String("ticket_id", notice.TicketID),
		zap.String("event_type", string(notice.EventType)))
}
