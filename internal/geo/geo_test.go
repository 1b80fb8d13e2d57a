package geo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	PositionFn func(ctx context.Context) (float64, float64, error)
}

func (f *fakeProvider) Position(ctx context.Context) (float64, float64, error) {
	return f.PositionFn(ctx)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLocator_Capture_Success(t *testing.T) {
	provider := &fakeProvider{
		PositionFn: func(ctx context.Context) (float64, float64, error) {
			return -23.5506, -46.6333, nil
		},
	}
	l := NewLocator(provider, time.Second, testLogger())

	result := l.Capture(context.Background())

	require.False(t, result.Manual)
	assert.InDelta(t, -23.5506, result.Fix.Latitude, 1e-9)
	assert.InDelta(t, -46.6333, result.Fix.Longitude, 1e-9)
	assert.Equal(t, "-23.55060, -46.63330", result.Fix.Formatted)
}

func TestLocator_Capture_NoProviderFallsBackToManual(t *testing.T) {
	l := NewLocator(nil, time.Second, testLogger())

	result := l.Capture(context.Background())

	assert.True(t, result.Manual)
}

func TestLocator_Capture_DenialFallsBackToManual(t *testing.T) {
	provider := &fakeProvider{
		PositionFn: func(ctx context.Context) (float64, float64, error) {
			return 0, 0, ErrPermissionDenied
		},
	}
	l := NewLocator(provider, time.Second, testLogger())

	result := l.Capture(context.Background())

	assert.True(t, result.Manual)
}

func TestLocator_Capture_TimeoutFallsBackToManual(t *testing.T) {
	provider := &fakeProvider{
		PositionFn: func(ctx context.Context) (float64, float64, error) {
			// Simulates a hung permission prompt; must honor the deadline
			<-ctx.Done()
			return 0, 0, ctx.Err()
		},
	}
	l := NewLocator(provider, 20*time.Millisecond, testLogger())

	start := time.Now()
	result := l.Capture(context.Background())

	assert.True(t, result.Manual)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPProvider_Position_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"latitude": -23.55, "longitude": -46.63, "accuracy": 12.5}`))
	}))
	defer server.Close()

	lat, lon, err := NewHTTPProvider(server.URL).Position(context.Background())

	require.NoError(t, err)
	assert.InDelta(t, -23.55, lat, 1e-9)
	assert.InDelta(t, -46.63, lon, 1e-9)
}

func TestHTTPProvider_Position_Denied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, _, err := NewHTTPProvider(server.URL).Position(context.Background())

	assert.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestHTTPProvider_Position_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("no coordinates here"))
	}))
	defer server.Close()

	_, _, err := NewHTTPProvider(server.URL).Position(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}
