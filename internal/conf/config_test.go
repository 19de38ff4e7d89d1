package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "debug: false\n")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, settings.Store.Driver)
	assert.Equal(t, "postit.db", settings.Store.SQLite.Path)
	assert.Equal(t, GatingStrict, settings.Workflow.SummaryGating)
	assert.False(t, settings.Workflow.ClearPracticeOnCriterionSwitch)
	assert.Equal(t, 300*time.Millisecond, settings.Workflow.AutoAdvanceDelay)
	assert.Equal(t, 500*time.Millisecond, settings.Workflow.ManualGrace)
	assert.Equal(t, 10*time.Minute, settings.Catalog.CacheTTL)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	assert.Same(t, settings, GetSettings())
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
debug: true
store:
  driver: mysql
  mysql:
    host: db.internal
    database: evals
workflow:
  summarygating: relaxed
  autoadvancedelay: 1s
  clearpracticeoncriterionswitch: true
logging:
  fileoutput:
    enabled: true
    path: /tmp/postit-test.log
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, settings.Store.Driver)
	assert.True(t, settings.Store.MySQL.Enabled)
	assert.Equal(t, "db.internal", settings.Store.MySQL.Host)
	assert.Equal(t, 3306, settings.Store.MySQL.Port)
	assert.Equal(t, GatingRelaxed, settings.Workflow.SummaryGating)
	assert.Equal(t, time.Second, settings.Workflow.AutoAdvanceDelay)
	assert.True(t, settings.Workflow.ClearPracticeOnCriterionSwitch)
	require.NotNil(t, settings.Logging.FileOutput)
	assert.True(t, settings.Logging.FileOutput.Enabled)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel, "debug flag lowers the default level")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("POSTIT_WORKFLOW_SUMMARYGATING", "relaxed")
	t.Setenv("POSTIT_STORE_SQLITE_PATH", ":memory:")

	settings, err := Load(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.Equal(t, GatingRelaxed, settings.Workflow.SummaryGating)
	assert.Equal(t, ":memory:", settings.Store.SQLite.Path)
}

func TestLoadWithFlagsOverridesFile(t *testing.T) {
	path := writeConfig(t, "debug: false\n")
	flags := pflag.NewFlagSet("postit", pflag.ContinueOnError)
	flags.Bool("debug", false, "")
	require.NoError(t, flags.Parse([]string{"--debug"}))

	settings, err := LoadWithFlags(path, flags)
	require.NoError(t, err)

	assert.True(t, settings.Debug)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateSettingsRejectsBadValues(t *testing.T) {
	t.Parallel()

	settings := &Settings{
		Store: StoreSettings{
			Driver: "postgres",
			SQLite: SQLiteSettings{Path: "x.db"},
		},
		Workflow: WorkflowSettings{
			SummaryGating:    "lenient",
			AutoAdvanceDelay: time.Minute,
		},
	}

	err := ValidateSettings(settings)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
}

func TestValidateSettingsMySQLNeedsDatabase(t *testing.T) {
	t.Parallel()

	settings := &Settings{
		Store: StoreSettings{
			Driver: DriverMySQL,
			SQLite: SQLiteSettings{Path: "unused.db"},
			MySQL:  MySQLSettings{Host: "db", Enabled: true},
		},
		Workflow: WorkflowSettings{SummaryGating: GatingStrict},
	}

	err := ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.mysql.database")
}
