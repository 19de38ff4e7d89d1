package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" json:"default_level" mapstructure:"defaultlevel"` // default log level for all modules
	Timezone     string            `yaml:"timezone" json:"timezone" mapstructure:"timezone"`               // "Local", "UTC", or IANA timezone name
	Console      *ConsoleOutput    `yaml:"console" json:"console" mapstructure:"console"`                  // console output configuration
	FileOutput   *FileOutput       `yaml:"file_output" json:"file_output" mapstructure:"fileoutput"`       // file output configuration
	ModuleLevels map[string]string `yaml:"module_levels" json:"module_levels" mapstructure:"modulelevels"` // per-module log levels
}

// ConsoleOutput represents console logging configuration.
// Console output uses human-readable text format.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" json:"level" mapstructure:"level"`
}

// FileOutput represents file logging configuration.
// File output uses JSON format for machine parsing and is rotated by lumberjack.
type FileOutput struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" json:"path" mapstructure:"path"`
	MaxSize    int    `yaml:"max_size" json:"max_size" mapstructure:"maxsize"`          // megabytes before rotation
	MaxAge     int    `yaml:"max_age" json:"max_age" mapstructure:"maxage"`             // days to keep rotated logs (0 = no limit)
	MaxBackups int    `yaml:"max_backups" json:"max_backups" mapstructure:"maxbackups"` // rotated files to keep (0 = no limit)
	Compress   bool   `yaml:"compress" json:"compress" mapstructure:"compress"`
	Level      string `yaml:"level" json:"level" mapstructure:"level"`
}

// Default values for logging configuration.
// These match the defaults in conf/defaults.go.
const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/postit.log"
	DefaultMaxSize        = 50
	DefaultMaxAge         = 30
	DefaultMaxBackups     = 5
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = false
)

// applyConfigDefaults applies defaults for nil configuration sections.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled:    DefaultFileEnabled,
			Path:       DefaultLogPath,
			Level:      cfg.DefaultLevel,
			MaxSize:    DefaultMaxSize,
			MaxAge:     DefaultMaxAge,
			MaxBackups: DefaultMaxBackups,
		}
	}

	if cfg.ModuleLevels == nil {
		cfg.ModuleLevels = make(map[string]string)
	}
}
