// Package provider holds stand-ins for the native platform location
// services: a fixed-position provider, a random-walk simulator and a
// push-driven feed.
package provider

import (
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

const (
	iosUpdateInterval = time.Second

	gpsAccuracy  = 5.0
	wifiAccuracy = 65.0
)

// updateInterval is the cadence at which fixes are produced under cfg.
func updateInterval(cfg domain.PlatformConfig) time.Duration {
	if a, ok := cfg.(domain.AndroidConfig); ok {
		return a.UpdateInterval
	}
	return iosUpdateInterval
}

// fastestInterval is the minimum spacing between deliveries to one request.
func fastestInterval(cfg domain.PlatformConfig) time.Duration {
	if a, ok := cfg.(domain.AndroidConfig); ok {
		return a.FastestInterval
	}
	return 0
}

// requestAccuracy is the nominal accuracy a request obtains under cfg.
func requestAccuracy(cfg domain.PlatformConfig, highAccuracy bool) float64 {
	if highAccuracy {
		return gpsAccuracy
	}
	if a, ok := cfg.(domain.AndroidConfig); ok {
		return a.LowAccuracyMode.ExpectedAccuracy()
	}
	return wifiAccuracy
}

// passive reports whether a request only listens to fixes caused by others.
func passive(cfg domain.PlatformConfig, highAccuracy bool) bool {
	a, ok := cfg.(domain.AndroidConfig)
	return ok && !highAccuracy && a.LowAccuracyMode == domain.NoPower
}
