package worker

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/service"
)

// NotificationWorker moves notice delivery off the command path. Handlers enqueue
// notices and a single goroutine delivers them in order.
type NotificationWorker struct {
	queue   chan service.Notice
	deliver func(context.Context, service.Notice)
	logger  *zap.Logger
	dropped atomic.Int64
	done    chan struct{}
}

// NewNotificationWorker creates a worker with a bounded queue.
func NewNotificationWorker(size int, deliver func(context.Context, service.Notice), logger *zap.Logger) *NotificationWorker {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		queue:   make(chan service.Notice, size),
		deliver: deliver,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// StartNotificationWorker routes the service's deliveries through a new worker, subscribes
// the service to domain events and starts delivering. The worker stops with ctx after
// draining what is already queued.
func StartNotificationWorker(ctx context.Context, notifications *service.NotificationService, size int, logger *zap.Logger) *NotificationWorker {
	if notifications == nil {
		return nil
	}
	w := NewNotificationWorker(size, notifications.Delivery(), logger)
	notifications.WithDelivery(w.Enqueue)
	notifications.RegisterHandlers()
	go w.Run(ctx)
	return w
}

// Enqueue queues a notice, dropping it when the queue is full.
func (w *NotificationWorker) Enqueue(_ context.Context, notice service.Notice) {
	select {
	case w.queue <- notice:
	default:
		w.dropped.Add(1)
		w.logger.Warn("notification queue full; dropping notice",
			zap.String("channel", string(notice.Channel)),
			zap.String("ticket_id", notice.TicketID),
			zap.String("event_type", string(notice.EventType)))
	}
}

// Run delivers notices until ctx is cancelled, then drains the queue.
func (w *NotificationWorker) Run(ctx context.Context) {
	defer close(w.done)
	deliverCtx := context.WithoutCancel(ctx)
	for {
		select {
		case notice := <-w.queue:
			w.deliver(deliverCtx, notice)
		case <-ctx.Done():
			for {
				select {
				case notice := <-w.queue:
					w.deliver(deliverCtx, notice)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (w *NotificationWorker) Done() <-chan struct{} {
	return w.done
}

// Dropped reports how many notices were discarded because the queue was full.
func (w *NotificationWorker) Dropped() int64 {
	return w.dropped.Load()
}
