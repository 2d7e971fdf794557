package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"

	"github.com/creasty/defaults"
	"github.com/netprobe/wirewatch/util"
)

//Version is filled at compile time with the git version of wirewatch
var Version = "v0.0.0+dev"

type (
	//Config holds the configuration for the running system
	Config struct {
		R RunningCfg
		S StaticCfg
		T TableCfg
	}
)

// GetConfig retrieves a configuration in order of precedence: the path given
// on the command line, the user's config, then the global config. If none of
// the files exist the defaults are used.
func GetConfig(cfgPath string) (*Config, error) {
	if cfgPath != "" {
		return LoadConfig(cfgPath)
	}

	// Get the user's homedir
	usr, err := user.Current()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not get user info: %s\n", err.Error())
	} else {
		userCfg := filepath.Join(usr.HomeDir, ".wirewatch", "config.yaml")
		if util.Exists(userCfg) {
			return LoadConfig(userCfg)
		}
	}

	// If none of the other configs have worked, go for the global config
	return LoadConfig("/etc/wirewatch/config.yaml")
}

// LoadConfig initializes a Config from the defaults and overlays the yaml
// file found at cfgPath. A missing file is not an error.
func LoadConfig(cfgPath string) (*Config, error) {
	config := &Config{}

	// Initialize table config to the default values
	if err := defaults.Set(&config.T); err != nil {
		return nil, err
	}

	// Initialize static config to the default values
	if err := defaults.Set(&config.S); err != nil {
		return nil, err
	}

	if err := loadStaticConfig(cfgPath, &config.S); err != nil {
		return nil, err
	}

	config.S.Version = Version

	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}

	return config, nil
}

// expandConfig expands environment variables in config strings
func expandConfig(reflected reflect.Value) {
	for i := 0; i < reflected.NumField(); i++ {
		f := reflected.Field(i)
		// process sub configs
		if f.Kind() == reflect.Struct {
			expandConfig(f)
		} else if f.Kind() == reflect.String {
			f.SetString(os.ExpandEnv(f.String()))
		} else if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String {
			strs := f.Interface().([]string)
			for i, str := range strs {
				strs[i] = os.ExpandEnv(str)
			}
			f.Set(reflect.ValueOf(strs))
		}
	}
}
