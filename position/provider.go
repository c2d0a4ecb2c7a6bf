// Package position abstracts position acquisition behind a single
// provider interface. Two concrete variants exist: a foreground
// provider that only delivers fixes while the client UI is visible, and
// a background provider that delivers regardless. Which one a session
// gets is decided once at construction from a capability flag, never
// re-checked per call.
package position

import (
	"context"
	"time"

	"gppo/utils"
)

// Fix is one position sample. Speed is m/s; negative means unknown.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"` // meters, 0 = unknown
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

type Options struct {
	HighAccuracy bool
	Timeout      time.Duration // GetOnce only; 0 = DefaultAcquireTimeout
	MaximumAge   time.Duration // GetOnce may return a cached fix this fresh
}

type WatchHandle int64

const (
	DefaultAcquireTimeout = 15 * time.Second

	// A high-accuracy GetOnce ignores fixes coarser than this.
	highAccuracyThreshold = 50.0 // meters
)

// Provider is the position source a tracking session consumes.
type Provider interface {
	// GetOnce returns a single fix. It times out after opts.Timeout
	// and retries once at low accuracy before failing.
	GetOnce(ctx context.Context, opts Options) (*Fix, error)

	// Watch invokes onFix for every delivered fix and onErr for every
	// provider failure until the handle is cancelled.
	Watch(onFix func(Fix), onErr func(error), opts Options) (WatchHandle, error)

	// Cancel stops a watch. Cancelling an unknown or already-cancelled
	// handle is a no-op.
	Cancel(handle WatchHandle)
}

// Capabilities describes what the client runtime supports.
type Capabilities struct {
	BackgroundCapable bool
}

// NewProvider picks the provider variant for the given capabilities,
// falling back to the foreground variant when background acquisition is
// unavailable.
func NewProvider(feed *Feed, gate *PermissionGate, caps Capabilities) Provider {
	if caps.BackgroundCapable {
		return NewBackgroundProvider(feed, gate)
	}
	return NewForegroundProvider(feed, gate)
}

func errPermissionDenied() error {
	return utils.NewServiceError(utils.ErrCodePermissionDenied, "location permission denied")
}

func errTimeout() error {
	return utils.NewServiceError(utils.ErrCodePositionTimeout, "timed out acquiring position")
}

func errUnavailable(details string) error {
	return utils.NewServiceError(utils.ErrCodePositionUnavailable, "position unavailable: "+details)
}
