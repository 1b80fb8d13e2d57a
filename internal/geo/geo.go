package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCaptureTimeout bounds a capture attempt. Position acquisition can
// hang on permission prompts or a slow device fix; the submit flow must
// never block on it indefinitely.
const DefaultCaptureTimeout = 10 * time.Second

// ErrPermissionDenied is returned by providers when the platform refused
// access to the device position
var ErrPermissionDenied = errors.New("position permission denied")

// Fix is a captured device position with a display string for the
// location field
type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Formatted string  `json:"formatted"`
}

// Result is the outcome of a capture attempt. Manual means no coordinates
// are available (denied, failed, or no provider) and the caller must prompt
// the user for a free-text location instead; it is not an error.
type Result struct {
	Fix    Fix  `json:"fix"`
	Manual bool `json:"manual"`
}

// Provider supplies raw device positions
type Provider interface {
	Position(ctx context.Context) (lat, lon float64, err error)
}

// Locator turns provider positions into capture results with a bounded
// timeout and the manual fallback
type Locator struct {
	provider Provider
	timeout  time.Duration
	logger   *logrus.Logger
}

// NewLocator creates a locator. A nil provider is allowed and makes every
// capture fall back to manual entry. A non-positive timeout selects
// DefaultCaptureTimeout.
func NewLocator(provider Provider, timeout time.Duration, logger *logrus.Logger) *Locator {
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	return &Locator{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Capture attempts to acquire the device position. Every failure path
// degrades to the manual-fallback result; the submit flow decides what to
// do with the missing fix, not this package.
func (l *Locator) Capture(ctx context.Context) Result {
	log := l.logger.WithField("component", "geo")

	if l.provider == nil {
		log.Debug("No position provider configured, falling back to manual entry")
		return Result{Manual: true}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	lat, lon, err := l.provider.Position(ctx)
	if err != nil {
		log.WithError(err).Warn("Position capture failed, falling back to manual entry")
		return Result{Manual: true}
	}

	return Result{Fix: Fix{
		Latitude:  lat,
		Longitude: lon,
		Formatted: FormatCoordinates(lat, lon),
	}}
}

// FormatCoordinates renders a fix for the location text field
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lon)
}
