package observability

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()
	const numGoroutines = 20

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if err != nil {
				errs <- err
				return
			}
			if m.Engine == nil || m.Datastore == nil || m.Registry() == nil {
				errs <- assert.AnError
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Engine.RecordToggle("criterion", "assigned")
	m.Datastore.RecordOperation("db_query:annotations", "success")

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, `postit_toggles_total{kind="criterion",outcome="assigned"} 1`)
	assert.Contains(t, out, `datastore_db_operations_total{operation="db_query",status="success",table="annotations"} 1`)
	assert.Contains(t, out, "# TYPE postit_toggles_total counter")
}
