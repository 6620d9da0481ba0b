package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

// FixSink accepts fixes from an external source.
type FixSink interface {
	Push(pos domain.Position)
	Fail(pe *domain.PositionError)
}

// FeedHandler lets an external GPS bridge drive the feed provider.
type FeedHandler struct {
	Sink FixSink
}

func NewFeedHandler(sink FixSink) *FeedHandler {
	return &FeedHandler{Sink: sink}
}

// feedMessage carries either a position or a platform error.
type feedMessage struct {
	Coords    *domain.Coords        `json:"coords"`
	Timestamp int64                 `json:"timestamp"`
	Error     *domain.PositionError `json:"error"`
}

func (h *FeedHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	var msg feedMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&msg); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidOptions, err))
		return
	}

	if msg.Error != nil {
		h.Sink.Fail(domain.NewPositionError(msg.Error.Code, msg.Error.Message))
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if msg.Coords == nil {
		writeMessage(w, http.StatusBadRequest, "coords or error required")
		return
	}

	at := time.Now()
	if msg.Timestamp > 0 {
		at = time.UnixMilli(msg.Timestamp)
	}
	pos, err := domain.NewPosition(*msg.Coords, at)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Sink.Push(pos)
	w.WriteHeader(http.StatusAccepted)
}
