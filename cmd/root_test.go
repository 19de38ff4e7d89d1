package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgrid/postit/internal/app"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
logging:
  defaultlevel: error
  console:
    enabled: true
    level: error
store:
  driver: sqlite
  sqlite:
    path: %s
`, filepath.Join(dir, "postit.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	actx := app.NewContext(nil)
	root := RootCommand(actx)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	require.NoError(t, actx.Close())
	return out.String(), err
}

func TestCommandsEndToEnd(t *testing.T) {
	config := writeConfig(t)

	out, err := execute(t, "--config", config, "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "schema migrated")

	out, err = execute(t, "--config", config, "seed", "seed/testdata/fixture.yaml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 domains, 3 criteria, 2 practices")
	assert.Contains(t, out, `activity 1 "Call 2026-03-01": annotations [1 2 3]`)

	out, err = execute(t, "--config", config, "show", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "entry step: summary")
	assert.Contains(t, out, "complete:   true (100%)")

	out, err = execute(t, "--config", config, "replay", "--metrics", "replay/testdata/assign.yaml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "step=summary")
	assert.Contains(t, out, "postit_toggles_total")

	_, err = execute(t, "--config", config, "show", "2")
	assert.Error(t, err, "annotation 2 was deleted by the replay")
}

func TestShowRejectsBadID(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "show", "abc")
	assert.Error(t, err)
}

func TestVersionSkipsConfig(t *testing.T) {
	out, err := execute(t, "--config", "/nonexistent/config.yaml", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "postit ")
}
