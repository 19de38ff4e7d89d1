package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgrid/postit/internal/buildinfo"
	"github.com/evalgrid/postit/internal/conf"
	"github.com/evalgrid/postit/internal/errors"
)

type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *captureTransport) Configure(sentry.ClientOptions) {}

func (t *captureTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *captureTransport) Flush(time.Duration) bool { return true }

func (t *captureTransport) FlushWithContext(context.Context) bool { return true }

func (t *captureTransport) Close() {}

func (t *captureTransport) Events() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func TestInitWithoutDSNDisablesReporting(t *testing.T) {
	ok, err := Init(&conf.TelemetrySettings{}, buildinfo.Info{}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, Enabled())
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestEnhancedErrorsAreReported(t *testing.T) {
	transport := &captureTransport{}
	settings := &conf.TelemetrySettings{
		SentryDSN:   "https://public@example.invalid/1",
		Environment: "test",
	}

	ok, err := Init(settings, buildinfo.Info{Version: "v0.1.0"}, nil, WithTransport(transport))
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(Close)

	_ = errors.Newf("store unavailable: postit:pw@tcp(10.0.0.5:3306)/postit").
		Component("datastore").
		Category(errors.CategoryDatabase).
		AnnotationContext(7, 3).
		Priority(errors.PriorityHigh).
		Build()

	events := transport.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "test", events[0].Environment)
	assert.Equal(t, "postit@v0.1.0", events[0].Release)
	assert.Empty(t, events[0].ServerName)
	assert.Equal(t, "datastore", events[0].Tags["component"])
	assert.Equal(t, errors.PriorityHigh, events[0].Tags["priority"])
	assert.Contains(t, events[0].Message, "mysql-dsn@private-ip")
	assert.NotContains(t, events[0].Message, "pw@tcp")
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := sentry.NewEvent()
	event.User = sentry.User{ID: "42", IPAddress: "10.0.0.1"}
	event.ServerName = "workstation"
	event.Contexts = map[string]sentry.Context{"os": {"name": "linux"}, "trace": {}}
	event.Extra = map[string]any{"component": "session", "path": "/home/user"}
	event.Tags = map[string]string{"hostname": "workstation", "category": "database"}

	out := applyPrivacyFilters(event)

	assert.True(t, out.User.IsEmpty())
	assert.Empty(t, out.ServerName)
	assert.NotContains(t, out.Contexts, "os")
	assert.Contains(t, out.Contexts, "trace")
	assert.Equal(t, map[string]any{"component": "session"}, out.Extra)
	assert.Equal(t, map[string]string{"category": "database"}, out.Tags)
}
