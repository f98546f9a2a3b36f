package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeDeck/internal/domain/models"
)

// DefaultNotificationTTL is how long an unacknowledged recipe signal stays
// visible before it is auto-dismissed.
const DefaultNotificationTTL = 10 * time.Second

// NotificationList holds transient recipe-signal notifications for the UI.
// Entries expire TTL after arrival unless acknowledged first.
type NotificationList struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*models.Notification
	now     func() time.Time
}

// NewNotificationList creates a notification list. ttl <= 0 uses the
// default 10s auto-dismiss window.
func NewNotificationList(ttl time.Duration) *NotificationList {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationList{
		ttl:     ttl,
		entries: make(map[string]*models.Notification),
		now:     time.Now,
	}
}

// Add records an incoming recipe signal and returns the notification.
func (l *NotificationList) Add(e *models.RecipeSignalEvent) *models.Notification {
	n := &models.Notification{
		ID:         uuid.NewString(),
		RecipeID:   e.RecipeID,
		RecipeName: e.RecipeName,
		SignalType: e.SignalType,
		StockCode:  e.StockCode,
		ReceivedAt: l.now(),
	}
	l.mu.Lock()
	l.pruneLocked()
	l.entries[n.ID] = n
	l.mu.Unlock()
	return n
}

// Ack acknowledges and removes a notification. Returns false when it is
// unknown or already expired.
func (l *NotificationList) Ack(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	if _, ok := l.entries[id]; !ok {
		return false
	}
	delete(l.entries, id)
	return true
}

// List returns live notifications, oldest first.
func (l *NotificationList) List() []*models.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	out := make([]*models.Notification, 0, len(l.entries))
	for _, n := range l.entries {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}

func (l *NotificationList) pruneLocked() {
	cutoff := l.now().Add(-l.ttl)
	for id, n := range l.entries {
		if n.ReceivedAt.Before(cutoff) {
			delete(l.entries, id)
		}
	}
}
