package sync

import (
	"time"

	"mangashelf/pkg/models"
)

const (
	EventFavoriteCreated = "favorite.created"
	EventFavoriteDeleted = "favorite.deleted"
	EventFavoriteRated   = "favorite.rated"
	EventVolumeAdded     = "volume.added"
	EventUpdateCompleted = "update.completed"
)

// ShelfEvent is the single event shape pushed to TCP and WebSocket listeners.
type ShelfEvent struct {
	Type       string         `json:"type"`
	FavoriteID int64          `json:"favorite_id,omitempty"`
	SeriesName string         `json:"series_name,omitempty"`
	Rating     *int           `json:"rating,omitempty"`
	Volume     *models.Volume `json:"volume,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	NewVolumes int            `json:"new_volumes,omitempty"`
	Failures   int            `json:"failures,omitempty"`
	At         time.Time      `json:"at"`
}

// Broadcaster is what producers need from the hub.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Publish stamps ev and broadcasts it without blocking the caller. A nil
// broadcaster drops the event.
func Publish(b Broadcaster, ev ShelfEvent) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	go b.BroadcastJSON(ev)
}
