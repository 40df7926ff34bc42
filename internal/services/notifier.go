package services

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"manifesthub/internal/database"
	"manifesthub/internal/models"
)

const (
	EventManifestUpdate  = "manifest_update"
	EventManifestDeleted = "manifest_deleted"
)

// listenerBuffer is how many undelivered events a listener may hold before
// it is dropped.
const listenerBuffer = 16

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans events out to connected listeners. Each listener gets its own
// buffered channel so a stalled connection never holds up the rest.
type Hub struct {
	mu        sync.Mutex
	listeners map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[string]chan Event)}
}

func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, listenerBuffer)
	h.mu.Lock()
	h.listeners[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe closes the listener's channel. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Broadcast delivers ev to every listener and returns how many received it.
func (h *Hub) Broadcast(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for id, ch := range h.listeners {
		select {
		case ch <- ev:
			sent++
		default:
			log.Warn("dropping slow listener", "listener", id)
			delete(h.listeners, id)
			close(ch)
		}
	}
	return sent
}

// ChangeSource returns rows created or updated after since.
type ChangeSource func(since time.Time) ([]models.Manifest, error)

// Notifier polls a ChangeSource and pushes changed rows to a Hub.
//
// Row timestamps are stamped before commit, so a transaction can become
// visible after a poll whose watermark is already past its timestamp. Each
// query therefore reaches back by Overlap, and rows already pushed with the
// same change time are skipped. A commit delayed by more than Overlap is
// still missed.
type Notifier struct {
	Hub       *Hub
	Source    ChangeSource
	Watermark time.Time
	Overlap   time.Duration

	delivered map[uint]time.Time
}

func changedAt(m models.Manifest) time.Time {
	if m.UploadedAt.After(m.UpdatedAt) {
		return m.UploadedAt
	}
	return m.UpdatedAt
}

// Poll runs one check and returns how many rows were pushed. The watermark
// moves to the newest change time seen, never to the wall clock.
func (n *Notifier) Poll() (int, error) {
	since := n.Watermark.Add(-n.Overlap)
	rows, err := n.Source(since)
	if err != nil {
		return 0, err
	}
	if n.delivered == nil {
		n.delivered = make(map[uint]time.Time)
	}
	for id, at := range n.delivered {
		if !at.After(since) {
			delete(n.delivered, id)
		}
	}

	fresh := rows[:0:0]
	for _, r := range rows {
		at := changedAt(r)
		if prev, ok := n.delivered[r.ID]; ok && !at.After(prev) {
			continue
		}
		n.delivered[r.ID] = at
		if at.After(n.Watermark) {
			n.Watermark = at
		}
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	n.Hub.Broadcast(Event{Type: EventManifestUpdate, Data: fresh})
	return len(fresh), nil
}

// StartChangeNotifier launches a background ticker that pushes manifest
// rows changed since the previous tick to every hub listener.
func StartChangeNotifier(ctx context.Context, hub *Hub, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	n := &Notifier{Hub: hub, Source: database.ManifestsChangedSince, Watermark: time.Now(), Overlap: interval}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := n.Poll()
				if err != nil {
					log.Error("checking for manifest updates", "err", err)
					continue
				}
				if count > 0 {
					log.Debug("pushed manifest updates", "rows", count, "listeners", hub.Len())
				}
			}
		}
	}()
}
