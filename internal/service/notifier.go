package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/visitor-slot-booking/internal/model"
	"github.com/iliyamo/visitor-slot-booking/internal/queue"
	"github.com/iliyamo/visitor-slot-booking/internal/repository"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 500
)

// EventPublisher fans lifecycle events out to the broker.
type EventPublisher interface {
	PublishLifecycle(ctx context.Context, ev queue.LifecycleEvent) error
}

// Notifier records lifecycle notifications.  Emitting never fails the
// caller: errors are logged and reported as false.
type Notifier struct {
	repo      *repository.NotificationRepo
	publisher EventPublisher

	// dispatch runs broker fan-out off the request path.
	dispatch func(func())
	inflight sync.WaitGroup
	now      func() time.Time
}

// NewNotifier builds a Notifier.  publisher may be nil to disable fan-out.
func NewNotifier(repo *repository.NotificationRepo, publisher EventPublisher) *Notifier {
	n := &Notifier{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
	n.dispatch = func(f func()) {
		n.inflight.Add(1)
		go func() {
			defer n.inflight.Done()
			f()
		}()
	}
	return n
}

// Wait blocks until every dispatched publish has finished or ctx is done.
// Call it before closing the publisher.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log.Printf("notifier: gave up waiting for in-flight publishes: %v", ctx.Err())
		return ctx.Err()
	}
}

// Emit appends a notification and, when a publisher is configured, fans
// the event out to the broker asynchronously.
func (n *Notifier) Emit(ctx context.Context, title, message, typ string, bookingID *uint64) bool {
	if typ == "" {
		typ = model.NotificationGeneral
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	id, err := n.repo.Insert(ctx, title, message, typ, bookingID)
	if err != nil {
		log.Printf("notifier: emit %s failed: %v", typ, err)
		return false
	}
	if n.publisher != nil {
		ev := queue.LifecycleEvent{
			NotificationID: id,
			Type:           typ,
			Title:          title,
			Message:        message,
			BookingID:      bookingID,
			OccurredAt:     n.now(),
		}
		n.dispatch(func() {
			pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pcancel()
			if err := n.publisher.PublishLifecycle(pctx, ev); err != nil {
				log.Printf("notifier: publish %s failed: %v", ev.Type, err)
			}
		})
	}
	return true
}

// MarkRead flags a notification as read.  Unknown ids are ignored.
func (n *Notifier) MarkRead(ctx context.Context, id uint64) error {
	if id == 0 {
		return invalid("id", "invalid notification id")
	}
	if err := n.repo.MarkRead(ctx, id); err != nil {
		return StorageError{Op: "mark notification read", Err: err}
	}
	return nil
}

// ListRecent returns the newest notifications, each carrying the name and
// phone of every visitor on its booking.  limit <= 0 means the default;
// larger values are capped.
func (n *Notifier) ListRecent(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}
	notes, err := n.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, StorageError{Op: "list notifications", Err: err}
	}

	ids := make([]uint64, 0, len(notes))
	seen := make(map[uint64]struct{})
	for _, note := range notes {
		if note.BookingID == nil {
			continue
		}
		if _, ok := seen[*note.BookingID]; !ok {
			seen[*note.BookingID] = struct{}{}
			ids = append(ids, *note.BookingID)
		}
	}
	if len(ids) == 0 {
		return notes, nil
	}
	contacts, err := n.repo.ContactsByBookingIDs(ctx, ids)
	if err != nil {
		return nil, StorageError{Op: "load notification contacts", Err: err}
	}
	for i := range notes {
		if notes[i].BookingID == nil {
			continue
		}
		if cs, ok := contacts[*notes[i].BookingID]; ok {
			notes[i].Contacts = cs
		}
	}
	return notes, nil
}
