// Package telemetry initializes Sentry error reporting. Reporting is off
// unless a DSN is configured; enhanced errors built through the errors
// package are then forwarded with privacy filtering applied.
package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/evalgrid/postit/internal/buildinfo"
	"github.com/evalgrid/postit/internal/conf"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/logger"
	"github.com/evalgrid/postit/internal/privacy"
)

// flushTimeout bounds how long Close waits for queued events.
const flushTimeout = 2 * time.Second

var (
	mu      sync.Mutex
	enabled bool
)

// Option adjusts the Sentry client options before Init.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, for tests.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// Init configures Sentry from settings. With an empty DSN it disables
// reporting and returns false.
func Init(settings *conf.TelemetrySettings, info buildinfo.Info, log logger.Logger, opts ...Option) (bool, error) {
	mu.Lock()
	defer mu.Unlock()

	if settings == nil || settings.SentryDSN == "" {
		errors.SetTelemetryReporter(nil)
		enabled = false
		return false, nil
	}

	env := settings.Environment
	if env == "" {
		env = "production"
	}

	options := sentry.ClientOptions{
		Dsn:              settings.SentryDSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      env,
		ServerName:       "",
		Release:          info.Release(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return false, fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	enabled = true
	if log != nil {
		log.Module("telemetry").Info("error reporting enabled",
			logger.String("environment", env),
			logger.String("release", options.Release))
	}
	return true, nil
}

// Enabled reports whether Init turned reporting on.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Close flushes queued events and detaches the reporter.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	sentry.Flush(flushTimeout)
	errors.SetTelemetryReporter(nil)
	enabled = false
}

// applyPrivacyFilters strips host and user identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}
