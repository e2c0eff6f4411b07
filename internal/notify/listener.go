package notify

import (
	"context"
	"log/slog"

	"github.com/lidagrab/lidagrab/internal/events"
)

// Listener bridges bus events to the notification service. Send errors are
// logged and swallowed.
type Listener struct {
	svc Service
	bus *events.Bus
	log *slog.Logger
}

// NewListener creates a listener.
func NewListener(svc Service, bus *events.Bus, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{
		svc: svc,
		bus: bus,
		log: log.With("component", "notify"),
	}
}

// Run consumes lifecycle events until ctx is cancelled or the bus closes.
func (l *Listener) Run(ctx context.Context) error {
	started := l.bus.Subscribe(events.EventDownloadStarted, 16)
	completed := l.bus.Subscribe(events.EventDownloadCompleted, 16)
	failed := l.bus.Subscribe(events.EventDownloadFailed, 16)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-started:
			if !ok {
				return nil
			}
			if evt, valid := e.(*events.DownloadStarted); valid {
				l.notify(ctx, l.svc.NotifyStarted(ctx, evt.Artist, evt.Title), e)
			}
		case e, ok := <-completed:
			if !ok {
				return nil
			}
			if evt, valid := e.(*events.DownloadCompleted); valid {
				l.notify(ctx, l.svc.NotifyCompleted(ctx, evt.Artist, evt.Title, evt.Degraded), e)
			}
		case e, ok := <-failed:
			if !ok {
				return nil
			}
			if evt, valid := e.(*events.DownloadFailed); valid {
				l.notify(ctx, l.svc.NotifyFailed(ctx, evt.Artist, evt.Title, evt.Reason), e)
			}
		}
	}
}

func (l *Listener) notify(ctx context.Context, err error, e events.Event) {
	if err != nil && ctx.Err() == nil {
		l.log.Warn("notification failed", "type", e.EventType(), "error", err)
	}
}
