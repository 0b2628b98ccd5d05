package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags connects named flags to their viper keys so the standard
// precedence (flag over env over config file over default) holds for
// every command. Unknown names are skipped so commands can share key
// maps.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if f := fs.Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
