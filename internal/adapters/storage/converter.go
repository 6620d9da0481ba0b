package storage

import (
	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

// toDomain converts a database model to a domain entity.
func toDomain(m PositionModel) domain.FixRecord {
	return domain.FixRecord{
		ID: m.ID,
		Position: domain.Position{
			Coords: domain.Coords{
				Latitude:         m.Latitude,
				Longitude:        m.Longitude,
				Altitude:         m.Altitude,
				Accuracy:         m.Accuracy,
				AltitudeAccuracy: m.AltitudeAccuracy,
				Heading:          m.Heading,
				Speed:            m.Speed,
			},
			Timestamp: m.Timestamp,
		},
		Source:     domain.FixSource(m.Source),
		WatchID:    domain.WatchID(m.WatchID),
		RecordedAt: m.RecordedAt,
	}
}

// toModel converts a domain entity to a database model.
func toModel(r domain.FixRecord) PositionModel {
	c := r.Position.Coords
	return PositionModel{
		ID:               r.ID,
		Latitude:         c.Latitude,
		Longitude:        c.Longitude,
		Altitude:         c.Altitude,
		Accuracy:         c.Accuracy,
		AltitudeAccuracy: c.AltitudeAccuracy,
		Heading:          c.Heading,
		Speed:            c.Speed,
		Timestamp:        r.Position.Timestamp,
		Source:           string(r.Source),
		WatchID:          uint64(r.WatchID),
		RecordedAt:       r.RecordedAt,
	}
}
