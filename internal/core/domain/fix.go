package domain

import "time"

// FixSource tells which kind of request produced a delivered fix.
type FixSource string

const (
	SourceCurrent FixSource = "current"
	SourceWatch   FixSource = "watch"
)

// FixRecord is a delivered position as kept in history.
type FixRecord struct {
	ID         string    `json:"id"`
	Position   Position  `json:"position"`
	Source     FixSource `json:"source"`
	WatchID    WatchID   `json:"watchId,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// HistoryFilter narrows a history query. Zero values mean no constraint.
type HistoryFilter struct {
	Since time.Time
	Limit int
}
