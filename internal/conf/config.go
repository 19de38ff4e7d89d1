// Package conf loads postit settings from defaults, a YAML config file and
// POSTIT_ environment variables.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/logger"
)

// Store driver names
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Summary gating policies
const (
	GatingStrict  = "strict"  // summary reachable only when criterion and practice are set
	GatingRelaxed = "relaxed" // summary reachable once a criterion is set
)

// SQLiteSettings configures the embedded database.
type SQLiteSettings struct {
	Path string `yaml:"path" validate:"required"` // database file, ":memory:" for a throwaway store
}

// MySQLSettings configures a shared MySQL database.
type MySQLSettings struct {
	Host            string        `yaml:"host" validate:"required_if=Enabled true"`
	Port            int           `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"maxopenconns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"maxidleconns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"connmaxlifetime"`
	Enabled         bool          `yaml:"-" mapstructure:"-"` // derived from Store.Driver
}

// StoreSettings selects and configures the persistence backend.
type StoreSettings struct {
	Driver        string         `yaml:"driver" validate:"oneof=sqlite mysql"`
	SlowThreshold time.Duration  `yaml:"slowthreshold"` // statements slower than this are logged at WARN
	SQLite        SQLiteSettings `yaml:"sqlite"`
	MySQL         MySQLSettings  `yaml:"mysql"`
}

// WorkflowSettings tunes the assignment step controller.
type WorkflowSettings struct {
	AutoAdvanceDelay               time.Duration `yaml:"autoadvancedelay" validate:"gte=0"`
	ManualGrace                    time.Duration `yaml:"manualgrace" validate:"gte=0"`
	SummaryGating                  string        `yaml:"summarygating" validate:"oneof=strict relaxed"`
	ClearPracticeOnCriterionSwitch bool          `yaml:"clearpracticeoncriterionswitch"`
}

// CatalogSettings configures criterion/practice lookups.
type CatalogSettings struct {
	CacheTTL time.Duration `yaml:"cachettl" validate:"gte=0"`
}

// TelemetrySettings configures error reporting and metrics.
type TelemetrySettings struct {
	SentryDSN   string `yaml:"sentrydsn" validate:"omitempty,url"`
	Environment string `yaml:"environment"`
	Metrics     bool   `yaml:"metrics"`
}

// Settings is the root configuration.
type Settings struct {
	Debug     bool                 `yaml:"debug"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Store     StoreSettings        `yaml:"store"`
	Workflow  WorkflowSettings     `yaml:"workflow"`
	Catalog   CatalogSettings      `yaml:"catalog"`
	Telemetry TelemetrySettings    `yaml:"telemetry"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from configFile (or the default search paths
// when empty), applies defaults and environment overrides and validates the
// result. A missing config file is not an error; defaults apply.
func Load(configFile string) (*Settings, error) {
	return LoadWithFlags(configFile, nil)
}

// LoadWithFlags is Load with command-line flags taking precedence over the
// config file and environment. Flag names match setting keys ("debug").
func LoadWithFlags(configFile string, flags *pflag.FlagSet) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	v := viper.New()
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("error binding flags: %w", err)
		}
	}

	settings, err := unmarshal(v)
	if err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults and environment bindings, then reads the config file.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)
	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if configFile != "" && os.IsNotExist(err) {
			return errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("config_file", configFile).
				Build()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// unmarshal decodes viper state into Settings and fills derived fields.
func unmarshal(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_settings").
			Build()
	}
	settings.Store.MySQL.Enabled = settings.Store.Driver == DriverMySQL
	if settings.Debug && settings.Logging.DefaultLevel == logger.DefaultLogLevel {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
	}
	return settings, nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "postit"))
	}
	return paths
}

// GetSettings returns the settings from the last successful Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
