package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPosition(t *testing.T) {
	at := time.UnixMilli(1700000000000)

	tests := []struct {
		name    string
		coords  Coords
		wantErr bool
	}{
		{
			name:   "minimal fix",
			coords: Coords{Latitude: 40.4168, Longitude: -3.7038, Accuracy: 12},
		},
		{
			name: "all optionals",
			coords: Coords{
				Latitude: 40.4168, Longitude: -3.7038, Accuracy: 5,
				Altitude: Float(650), AltitudeAccuracy: Float(3), Heading: Float(90), Speed: Float(1.5),
			},
		},
		{
			name:    "latitude out of range",
			coords:  Coords{Latitude: 91, Longitude: 0},
			wantErr: true,
		},
		{
			name:    "longitude out of range",
			coords:  Coords{Latitude: 0, Longitude: -180.5},
			wantErr: true,
		},
		{
			name:    "negative accuracy",
			coords:  Coords{Latitude: 1, Longitude: 1, Accuracy: -1},
			wantErr: true,
		},
		{
			name:    "negative altitude accuracy",
			coords:  Coords{Latitude: 1, Longitude: 1, AltitudeAccuracy: Float(-0.1)},
			wantErr: true,
		},
		{
			name:    "NaN latitude",
			coords:  Coords{Latitude: math.NaN(), Longitude: 1},
			wantErr: true,
		},
		{
			name:    "heading out of range",
			coords:  Coords{Latitude: 1, Longitude: 1, Heading: Float(360)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPosition(tt.coords, at)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPosition))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, at.UnixMilli(), p.Timestamp)
			assert.Equal(t, at, p.Time())
		})
	}
}

func TestPosition_Age(t *testing.T) {
	now := time.UnixMilli(1700000010000)
	p := Position{Timestamp: 1700000000000}
	assert.Equal(t, 10*time.Second, p.Age(now))

	future := Position{Timestamp: now.Add(time.Minute).UnixMilli()}
	assert.Equal(t, time.Duration(0), future.Age(now))
}

func TestPosition_JSONShape(t *testing.T) {
	p := Position{
		Coords:    Coords{Latitude: 1.5, Longitude: 2.5, Accuracy: 10},
		Timestamp: 1700000000000,
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"coords": {
			"latitude": 1.5, "longitude": 2.5, "altitude": null, "accuracy": 10,
			"altitudeAccuracy": null, "heading": null, "speed": null
		},
		"timestamp": 1700000000000
	}`, string(data))
}
