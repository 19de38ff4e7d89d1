package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestGormAdapterLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	adapter := NewGormLoggerAdapter(NewSlogLogger(&buf, LogLevelWarn, time.UTC), 50*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT * FROM annotations", 1 }

	adapter.Trace(ctx, time.Now(), stmt, nil)
	assert.Empty(t, buf.String(), "plain statements stay at trace")

	adapter.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record-not-found is not a failure")

	adapter.Trace(ctx, time.Now(), stmt, errors.New("disk I/O error"))
	assert.Contains(t, buf.String(), "statement failed")

	buf.Reset()
	adapter.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), "slow statement")
}
