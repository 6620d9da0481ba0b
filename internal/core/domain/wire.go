package domain

import (
	"fmt"
	"time"
)

// OptionsDocument is the wire form of request and watch options shared by
// the HTTP, WebSocket and gRPC transports. Durations are in milliseconds.
type OptionsDocument struct {
	Timeout               *int64   `json:"timeout,omitempty"`
	MaximumAge            *int64   `json:"maximumAge,omitempty"`
	EnableHighAccuracy    bool     `json:"enableHighAccuracy,omitempty"`
	DistanceFilter        *float64 `json:"distanceFilter,omitempty"`
	UseSignificantChanges bool     `json:"useSignificantChanges,omitempty"`
}

// Request converts the document into single-shot request options.
func (d OptionsDocument) Request() *RequestOptions {
	o := &RequestOptions{EnableHighAccuracy: d.EnableHighAccuracy}
	if d.Timeout != nil {
		o.Timeout = Millis(*d.Timeout)
	}
	if d.MaximumAge != nil {
		o.MaximumAge = Millis(*d.MaximumAge)
	}
	return o
}

// Watch converts the document into watch options.
func (d OptionsDocument) Watch() *WatchOptions {
	return &WatchOptions{
		RequestOptions:        *d.Request(),
		DistanceFilter:        d.DistanceFilter,
		UseSignificantChanges: d.UseSignificantChanges,
	}
}

// ConfigDocument is the wire form of a PlatformConfig. Intervals are in
// milliseconds; fields that do not apply to the platform are ignored.
type ConfigDocument struct {
	Platform               Platform `json:"platform"`
	LowAccuracyMode        string   `json:"lowAccuracyMode,omitempty"`
	FastestInterval        int64    `json:"fastestInterval,omitempty"`
	UpdateInterval         int64    `json:"updateInterval,omitempty"`
	SkipPermissionRequests bool     `json:"skipPermissionRequests,omitempty"`
}

// Config converts the document into a platform configuration.
func (d ConfigDocument) Config() (PlatformConfig, error) {
	p, err := ParsePlatform(string(d.Platform))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if p == PlatformIOS {
		return IOSConfig{SkipPermissionRequests: d.SkipPermissionRequests}, nil
	}

	cfg := AndroidConfig{
		FastestInterval: time.Duration(d.FastestInterval) * time.Millisecond,
		UpdateInterval:  time.Duration(d.UpdateInterval) * time.Millisecond,
	}
	if d.LowAccuracyMode != "" {
		mode, err := ParseLowAccuracyMode(d.LowAccuracyMode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		cfg.LowAccuracyMode = mode
	}
	return cfg, nil
}

// DocumentFromConfig renders cfg in its wire form.
func DocumentFromConfig(cfg PlatformConfig) ConfigDocument {
	switch c := cfg.(type) {
	case AndroidConfig:
		return ConfigDocument{
			Platform:        PlatformAndroid,
			LowAccuracyMode: c.LowAccuracyMode.String(),
			FastestInterval: c.FastestInterval.Milliseconds(),
			UpdateInterval:  c.UpdateInterval.Milliseconds(),
		}
	case IOSConfig:
		return ConfigDocument{Platform: PlatformIOS, SkipPermissionRequests: c.SkipPermissionRequests}
	}
	return ConfigDocument{}
}
