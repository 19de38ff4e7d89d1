package conf

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. POSTIT_STORE_DRIVER.
const EnvPrefix = "POSTIT"

// bindEnv enables POSTIT_ overrides for every key that has a default.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
