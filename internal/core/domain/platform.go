package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Platform identifies the native location stack in use.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// ParsePlatform accepts platform names case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformAndroid:
		return PlatformAndroid, nil
	case PlatformIOS:
		return PlatformIOS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// LowAccuracyMode selects the power/precision tradeoff Android uses when
// high accuracy is not requested.
type LowAccuracyMode int

const (
	// Balanced requests city-block precision (~100 m), mostly WiFi and cell towers.
	Balanced LowAccuracyMode = 102
	// LowPower requests city-level precision (~10 km).
	LowPower LowAccuracyMode = 104
	// NoPower never triggers updates; only fixes requested by others are received.
	NoPower LowAccuracyMode = 105
)

func (m LowAccuracyMode) Valid() bool {
	switch m {
	case Balanced, LowPower, NoPower:
		return true
	}
	return false
}

func (m LowAccuracyMode) String() string {
	switch m {
	case Balanced:
		return "BALANCED"
	case LowPower:
		return "LOW_POWER"
	case NoPower:
		return "NO_POWER"
	}
	return fmt.Sprintf("LowAccuracyMode(%d)", int(m))
}

// ExpectedAccuracy is the nominal horizontal accuracy in meters for the mode.
func (m LowAccuracyMode) ExpectedAccuracy() float64 {
	switch m {
	case LowPower:
		return 10000
	case NoPower:
		return 10000
	}
	return 100
}

// ParseLowAccuracyMode accepts either the mode name or its numeric value.
func ParseLowAccuracyMode(s string) (LowAccuracyMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BALANCED", "102":
		return Balanced, nil
	case "LOW_POWER", "104":
		return LowPower, nil
	case "NO_POWER", "105":
		return NoPower, nil
	}
	return 0, fmt.Errorf("unknown low accuracy mode %q", s)
}

// Android defaults.
const (
	DefaultLowAccuracyMode = Balanced
	DefaultFastestInterval = 10 * time.Second
	DefaultUpdateInterval  = 5 * time.Second
)

// PlatformConfig is the process-wide configuration consumed by every
// subsequent request. Implemented by AndroidConfig and IOSConfig only.
type PlatformConfig interface {
	Platform() Platform
	normalize() (PlatformConfig, error)
}

// AndroidConfig tunes the fused location provider. Zero fields take defaults.
type AndroidConfig struct {
	LowAccuracyMode LowAccuracyMode
	FastestInterval time.Duration
	UpdateInterval  time.Duration
}

func (AndroidConfig) Platform() Platform { return PlatformAndroid }

func (c AndroidConfig) normalize() (PlatformConfig, error) {
	if c.LowAccuracyMode == 0 {
		c.LowAccuracyMode = DefaultLowAccuracyMode
	}
	if !c.LowAccuracyMode.Valid() {
		return nil, fmt.Errorf("invalid low accuracy mode %d", int(c.LowAccuracyMode))
	}
	if c.FastestInterval < 0 || c.UpdateInterval < 0 {
		return nil, errors.New("intervals must not be negative")
	}
	if c.FastestInterval == 0 {
		c.FastestInterval = DefaultFastestInterval
	}
	if c.UpdateInterval == 0 {
		c.UpdateInterval = DefaultUpdateInterval
	}
	return c, nil
}

// IOSConfig tunes CoreLocation usage.
type IOSConfig struct {
	// SkipPermissionRequests disables automatic authorization prompts;
	// requests made while undetermined fail with PermissionDenied.
	SkipPermissionRequests bool
}

func (IOSConfig) Platform() Platform { return PlatformIOS }

func (c IOSConfig) normalize() (PlatformConfig, error) { return c, nil }

// NormalizeConfig validates cfg and fills its defaults.
func NormalizeConfig(cfg PlatformConfig) (PlatformConfig, error) {
	switch v := cfg.(type) {
	case nil:
		return nil, errors.New("nil platform configuration")
	case *AndroidConfig:
		if v == nil {
			return nil, errors.New("nil platform configuration")
		}
		cfg = *v
	case *IOSConfig:
		if v == nil {
			return nil, errors.New("nil platform configuration")
		}
		cfg = *v
	}
	return cfg.normalize()
}

// DefaultConfig returns the configuration a platform starts with.
func DefaultConfig(p Platform) PlatformConfig {
	if p == PlatformIOS {
		return IOSConfig{}
	}
	cfg, _ := AndroidConfig{}.normalize()
	return cfg
}
