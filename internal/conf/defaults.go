package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/evalgrid/postit/internal/logger"
)

// setDefaultConfig registers the default value of every setting.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.defaultlevel", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.fileoutput.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.fileoutput.path", logger.DefaultLogPath)
	v.SetDefault("logging.fileoutput.level", logger.DefaultLogLevel)
	v.SetDefault("logging.fileoutput.maxsize", logger.DefaultMaxSize)
	v.SetDefault("logging.fileoutput.maxage", logger.DefaultMaxAge)
	v.SetDefault("logging.fileoutput.maxbackups", logger.DefaultMaxBackups)
	v.SetDefault("logging.fileoutput.compress", false)

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.slowthreshold", 200*time.Millisecond)
	v.SetDefault("store.sqlite.path", "postit.db")
	v.SetDefault("store.mysql.host", "localhost")
	v.SetDefault("store.mysql.port", 3306)
	v.SetDefault("store.mysql.username", "postit")
	v.SetDefault("store.mysql.password", "")
	v.SetDefault("store.mysql.database", "postit")
	v.SetDefault("store.mysql.maxopenconns", 10)
	v.SetDefault("store.mysql.maxidleconns", 5)
	v.SetDefault("store.mysql.connmaxlifetime", time.Hour)

	v.SetDefault("workflow.autoadvancedelay", 300*time.Millisecond)
	v.SetDefault("workflow.manualgrace", 500*time.Millisecond)
	v.SetDefault("workflow.summarygating", GatingStrict)
	v.SetDefault("workflow.clearpracticeoncriterionswitch", false)

	v.SetDefault("catalog.cachettl", 10*time.Minute)

	v.SetDefault("telemetry.sentrydsn", "")
	v.SetDefault("telemetry.environment", "production")
	v.SetDefault("telemetry.metrics", false)
}
