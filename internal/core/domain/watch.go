package domain

import (
	"fmt"
	"strconv"
)

// WatchID is an opaque handle for one watch registration. The zero value
// never identifies a watch.
type WatchID uint64

// NewWatchID packs an arena slot and its generation.
func NewWatchID(slot, generation uint32) WatchID {
	return WatchID(uint64(generation)<<32 | uint64(slot+1))
}

// Slot returns the arena index, and false for the zero id.
func (id WatchID) Slot() (uint32, bool) {
	low := uint32(id)
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

// Generation returns the allocation generation encoded in id.
func (id WatchID) Generation() uint32 {
	return uint32(id >> 32)
}

func (id WatchID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseWatchID parses the decimal form produced by String.
func ParseWatchID(s string) (WatchID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWatch, s)
	}
	return WatchID(v), nil
}
