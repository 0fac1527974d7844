// Package config loads agent settings from the environment.
//
// Every setting is read from a PI_ prefixed variable (PI_API_KEY,
// PI_WALLET_PRIVATE_SEED, ...). The wallet seed is also accepted as plain
// WALLET_PRIVATE_SEED. An optional .env file is loaded first; variables
// already set in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/vitwit/pinetwork/types"
	"github.com/vitwit/pinetwork/utils"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "PI"

// aliases are extra variable names accepted for a key, without the prefix.
var aliases = map[string][]string{
	"WALLET_PRIVATE_SEED": {"WALLET_PRIVATE_SEED"},
}

// Load reads the configuration. envFile may be empty; a missing default
// ".env" is not an error, a missing explicit file is.
func Load(envFile string) (*types.Config, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := setDefaultConfig(v); err != nil {
		return nil, fmt.Errorf("error setting default config: %w", err)
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.WalletPrivateSeed = strings.TrimSpace(cfg.WalletPrivateSeed)

	if err := utils.ValidateStruct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Network returns the configured network.
func Network(cfg *types.Config) (types.Network, error) {
	return types.ParseNetwork(cfg.Network)
}

// Describe lists every variable with its default and meaning.
func Describe() []string {
	t := reflect.TypeOf(types.Config{})
	out := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		line := fmt.Sprintf("%s_%s\t%s", EnvPrefix, f.Tag.Get("mapstructure"), f.Tag.Get("envInfo"))
		if def := f.Tag.Get("envDefault"); def != "" {
			line += fmt.Sprintf(" (default %q)", def)
		}
		out = append(out, line)
	}
	return out
}

// LoadEnvFile loads path, or .env when path is empty, into the environment.
func LoadEnvFile(path string) error {
	if path == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func setDefaultConfig(v *viper.Viper) error {
	t := reflect.TypeOf(types.Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Tag.Get("mapstructure")
		if def := f.Tag.Get("envDefault"); def != "" {
			v.SetDefault(key, def)
		}

		names := []string{EnvPrefix + "_" + key}
		names = append(names, aliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("error binding env variable for key %s: %w", key, err)
		}
	}
	return nil
}
