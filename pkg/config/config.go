// Package config loads settings from .env files and the process environment
package config

import (
	"os"

	"riciti/pkg/helpers"

	"github.com/spf13/cast"
	viperlib "github.com/spf13/viper"
)

// viper instance shared by the package
var viper *viperlib.Viper

// ConfigFunc builds one config block lazily
type ConfigFunc func() map[string]interface{}

// ConfigFuncs holds registered blocks until InitConfig evaluates them
var ConfigFuncs map[string]ConfigFunc

func init() {
	viper = viperlib.New()
	viper.SetConfigType("env")
	// Relative to main.go
	viper.AddConfigPath(".")
	// Process environment wins over .env values
	viper.AutomaticEnv()

	ConfigFuncs = make(map[string]ConfigFunc)
}

// InitConfig loads .env (or .env.<env> when env is set) and builds every
// registered config block. A missing file is tolerated so containers can
// run on process environment alone.
func InitConfig(env string) {
	loadEnv(env)
	loadConfig()
}

func loadConfig() {
	for name, fn := range ConfigFuncs {
		viper.Set(name, fn())
	}
}

func loadEnv(envSuffix string) {
	envPath := ".env"
	if len(envSuffix) > 0 {
		filepath := ".env." + envSuffix
		if _, err := os.Stat(filepath); err == nil {
			envPath = filepath
		}
	}

	viper.SetConfigName(envPath)
	viper.SetConfigFile(envPath)
	if _, err := os.Stat(envPath); err != nil {
		return
	}
	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}
	viper.WatchConfig()
}

// Env reads an environment variable with an optional default
func Env(envName string, defaultValue ...interface{}) interface{} {
	if len(defaultValue) > 0 {
		return internalGet(envName, defaultValue[0])
	}
	return internalGet(envName)
}

// Add registers a config block under name
func Add(name string, configFn ConfigFunc) {
	ConfigFuncs[name] = configFn
}

// Set overrides a single key. Mostly used by tests.
func Set(path string, value interface{}) {
	viper.Set(path, value)
}

// Get returns the value at a dotted path such as app.name, falling back
// to the optional default.
func Get(path string, defaultValue ...interface{}) string {
	return GetString(path, defaultValue...)
}

func internalGet(path string, defaultValue ...interface{}) interface{} {
	if !viper.IsSet(path) || helpers.Empty(viper.Get(path)) {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return nil
	}
	return viper.Get(path)
}

// GetString returns a string setting
func GetString(path string, defaultValue ...interface{}) string {
	return cast.ToString(internalGet(path, defaultValue...))
}

// GetInt returns an int setting
func GetInt(path string, defaultValue ...interface{}) int {
	return cast.ToInt(internalGet(path, defaultValue...))
}

// GetBool returns a bool setting
func GetBool(path string, defaultValue ...interface{}) bool {
	return cast.ToBool(internalGet(path, defaultValue...))
}

// GetStringSlice accepts either a comma separated string or a slice
func GetStringSlice(path string, defaultValue ...interface{}) []string {
	value := internalGet(path, defaultValue...)
	if s, ok := value.(string); ok {
		return helpers.SplitAndTrim(s, ",")
	}
	return cast.ToStringSlice(value)
}
